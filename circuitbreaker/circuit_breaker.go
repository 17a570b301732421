package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/afex/hystrix-go/hystrix"
)

// FallbackFunc is one attempt of a command, typically a call against one source.
type FallbackFunc func(ctx context.Context) ([]any, error)

type CommandResult struct {
	res       []any
	err       error
	cancelled bool
}

func (cr CommandResult) Result() []any {
	return cr.res
}

func (cr CommandResult) Error() error {
	return cr.err
}

func (cr CommandResult) Cancelled() bool {
	return cr.cancelled
}

// Command is an ordered list of functors. Execute stops at the first one that succeeds.
type Command struct {
	ctx      context.Context
	functors []*Functor
	cancel   atomic.Bool
}

func NewCommand(ctx context.Context, functors []*Functor) *Command {
	return &Command{
		ctx:      ctx,
		functors: functors,
	}
}

func (cmd *Command) Add(ftor *Functor) {
	cmd.functors = append(cmd.functors, ftor)
}

func (cmd *Command) IsEmpty() bool {
	return len(cmd.functors) == 0
}

// Cancel stops the command before the next functor runs. It is safe to call
// from a running functor.
func (cmd *Command) Cancel() {
	cmd.cancel.Store(true)
}

// Config holds hystrix settings applied to circuits created on first use.
// Timeout and SleepWindow are in milliseconds.
type Config struct {
	Timeout                int
	MaxConcurrentRequests  int
	RequestVolumeThreshold int
	SleepWindow            int
	ErrorPercentThreshold  int
}

type CircuitBreaker struct {
	config Config
}

func NewCircuitBreaker(config Config) *CircuitBreaker {
	return &CircuitBreaker{
		config: config,
	}
}

type Functor struct {
	exec        FallbackFunc
	circuitName string
}

func NewFunctor(exec FallbackFunc, circuitName string) *Functor {
	return &Functor{
		exec:        exec,
		circuitName: circuitName,
	}
}

// Execute runs the functors of cmd in order, each inside its own circuit,
// and returns the result of the first success. When every functor fails
// the errors of all of them are joined. A cancelled command or a done
// context stops the sequence and marks the result cancelled.
// This is a blocking function.
func (cb *CircuitBreaker) Execute(cmd *Command) CommandResult {
	if cmd == nil || cmd.IsEmpty() {
		return CommandResult{err: fmt.Errorf("command is nil or empty")}
	}

	var result CommandResult
	ctx := cmd.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	for _, f := range cmd.functors {
		if cmd.cancel.Load() || ctx.Err() != nil {
			result.cancelled = true
			break
		}

		if !CircuitExists(f.circuitName) {
			hystrix.ConfigureCommand(f.circuitName, hystrix.CommandConfig{
				Timeout:                cb.config.Timeout,
				MaxConcurrentRequests:  cb.config.MaxConcurrentRequests,
				RequestVolumeThreshold: cb.config.RequestVolumeThreshold,
				SleepWindow:            cb.config.SleepWindow,
				ErrorPercentThreshold:  cb.config.ErrorPercentThreshold,
			})
		}

		var res []any
		err := hystrix.DoC(ctx, f.circuitName, func(ctx context.Context) error {
			var execErr error
			res, execErr = f.exec(ctx)
			return execErr
		}, nil)

		if err == nil {
			result = CommandResult{res: res}
			break
		}

		result.err = errors.Join(result.err, fmt.Errorf("%s.error: %w", f.circuitName, err))
	}

	if cmd.cancel.Load() {
		result.cancelled = true
	}

	return result
}

// CircuitExists reports whether a circuit with that name has been configured.
func CircuitExists(name string) bool {
	_, ok := hystrix.GetCircuitSettings()[name]
	return ok
}

// IsCircuitOpen reports whether the named circuit currently rejects calls.
func IsCircuitOpen(name string) bool {
	if !CircuitExists(name) {
		return false
	}
	circuit, _, err := hystrix.GetCircuit(name)
	if err != nil {
		return false
	}
	return circuit.IsOpen()
}
