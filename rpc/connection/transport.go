package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/ethereum/go-ethereum/event"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/status-im/nodemanager/common"
	"github.com/status-im/nodemanager/healthmanager/provider_errors"
	"github.com/status-im/nodemanager/params"
)

const (
	// BlockHashMethod returns the hash of a block by number, 0 is genesis.
	BlockHashMethod = "chain_getBlockHash"
)

// ErrNotConnected is returned by calls made while no socket is open.
var ErrNotConnected = errors.New("rpc transport is not connected")

// Dialer opens a JSON-RPC client to url.
type Dialer func(ctx context.Context, url string) (*gethrpc.Client, error)

// Transport keeps a single JSON-RPC connection alive against a switchable url.
// It retries forever, reporting every phase through SubscribeStates.
//
// Transport is safe for concurrent use. SwitchURL, SetAddress and
// SetAppActive never block on subscribers.
type Transport struct {
	config params.TransportConfig
	dial   Dialer
	logger *zap.Logger

	stateFeed     event.Feed
	connectedFeed event.Feed
	scope         event.SubscriptionScope

	mu        sync.RWMutex
	url       string
	active    bool
	client    *gethrpc.Client
	state     State
	genCancel context.CancelFunc

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Transport.
type Option func(*Transport)

// WithDialer replaces the default gethrpc.DialContext dialer.
func WithDialer(d Dialer) Option {
	return func(t *Transport) {
		t.dial = d
	}
}

// NewTransport creates a transport. Nothing is dialed before Start.
func NewTransport(config params.TransportConfig, logger *zap.Logger, opts ...Option) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Transport{
		config: config,
		dial:   gethrpc.DialContext,
		logger: logger.Named("connection"),
		active: true,
		state:  Disconnected(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start runs the connection loop in background.
func (t *Transport) Start(ctx context.Context) {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer common.LogOnPanic()
		defer t.wg.Done()
		t.loop(ctx)
	}()
}

// Stop closes the connection, waits for the loop to exit and ends all subscriptions.
func (t *Transport) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	t.wg.Wait()
	t.scope.Close()

	t.mu.Lock()
	t.cancel = nil
	t.mu.Unlock()
}

// SetAddress sets the url to connect to, without logging it as a switch.
// It is used to seed the transport before Start.
func (t *Transport) SetAddress(url string) {
	t.retarget(url)
}

// SwitchURL drops the current connection and starts dialing url.
// The attempt counter of WaitingForReconnect restarts for the new url.
func (t *Transport) SwitchURL(url string) {
	t.logger.Info("switching rpc url", zap.String("url", url))
	t.retarget(url)
}

func (t *Transport) retarget(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.url = url
	if t.genCancel != nil {
		t.genCancel()
	}
}

// SetAppActive follows the host application lifecycle. An inactive app keeps
// no socket open; becoming active again resumes dialing the current url.
func (t *Transport) SetAppActive(active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == active {
		return
	}
	t.logger.Debug("app state changed", zap.Bool("active", active))
	t.active = active
	if t.genCancel != nil {
		t.genCancel()
	}
}

// URL returns the url the transport is currently targeting.
func (t *Transport) URL() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.url
}

// State returns the most recently emitted state.
func (t *Transport) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// IsConnected is a shortcut for State().IsConnected().
func (t *Transport) IsConnected() bool {
	return t.State().IsConnected()
}

// SubscribeStates delivers every transition, in order. Delivery blocks the
// transport loop until the subscriber receives, so subscribers must drain
// ch or unsubscribe.
func (t *Transport) SubscribeStates(ch chan<- State) event.Subscription {
	return t.scope.Track(t.stateFeed.Subscribe(ch))
}

// SubscribeConnected delivers liveness changes.
func (t *Transport) SubscribeConnected(ch chan<- bool) event.Subscription {
	return t.scope.Track(t.connectedFeed.Subscribe(ch))
}

// CallContext performs a JSON-RPC call on the live connection.
func (t *Transport) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()
	if client == nil {
		return ErrNotConnected
	}
	return client.CallContext(ctx, result, method, args...)
}

// BlockHash reads the genesis block hash of the connected chain.
func (t *Transport) BlockHash(ctx context.Context) (string, error) {
	var hash string
	if err := t.CallContext(ctx, &hash, BlockHashMethod, 0); err != nil {
		return "", err
	}
	return hash, nil
}

func (t *Transport) loop(ctx context.Context) {
	defer t.closeClient(nil)
	for {
		if ctx.Err() != nil {
			return
		}

		t.mu.Lock()
		url, active := t.url, t.active
		genCtx, genCancel := context.WithCancel(ctx)
		t.genCancel = genCancel
		t.mu.Unlock()

		if url == "" || !active {
			t.emit(genCtx, Disconnected())
			<-genCtx.Done()
			continue
		}

		t.run(genCtx, url)
		genCancel()
	}
}

// run keeps url connected until ctx is cancelled by a retarget or Stop.
func (t *Transport) run(ctx context.Context, url string) {
	b := t.newBackOff()
	attempt := 0
	for {
		t.emit(ctx, Connecting(url))
		client, err := t.connect(ctx, url)
		if err == nil {
			attempt = 0
			b.Reset()
			t.setClient(client)
			t.emit(ctx, Connected(url))
			err = t.keepAlive(ctx, client)
			t.closeClient(client)
		}
		if ctx.Err() != nil {
			return
		}

		attempt++
		t.logger.Debug("rpc connection failed", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
		t.emit(ctx, WaitingForReconnect(url, attempt))

		timer := time.NewTimer(b.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (t *Transport) connect(ctx context.Context, url string) (*gethrpc.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, t.config.DialTimeout.Std())
	defer cancel()
	client, err := t.dial(dialCtx, url)
	if err != nil {
		return nil, err
	}
	// http clients do not connect on dial, the first call proves the endpoint.
	if err := t.ping(dialCtx, client); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (t *Transport) keepAlive(ctx context.Context, client *gethrpc.Client) error {
	ticker := time.NewTicker(t.config.PingInterval.Std())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, t.config.DialTimeout.Std())
			err := t.ping(pingCtx, client)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

// ping succeeds when the node answers, even with a JSON-RPC error.
func (t *Transport) ping(ctx context.Context, client *gethrpc.Client) error {
	var res interface{}
	err := client.CallContext(ctx, &res, t.config.PingMethod)
	if provider_errors.IsNonCriticalRpcError(err) {
		return nil
	}
	return err
}

func (t *Transport) setClient(client *gethrpc.Client) {
	t.mu.Lock()
	t.client = client
	t.mu.Unlock()
}

// closeClient closes c if it is the live client. A nil c closes whatever is live.
func (t *Transport) closeClient(c *gethrpc.Client) {
	t.mu.Lock()
	client := t.client
	if c == nil || client == c {
		t.client = nil
	}
	t.mu.Unlock()
	if c != nil {
		c.Close()
	} else if client != nil {
		client.Close()
	}
}

// emit records and publishes s unless ctx was cancelled, so that a retarget
// stops the old url from reporting further transitions.
func (t *Transport) emit(ctx context.Context, s State) {
	if ctx.Err() != nil {
		return
	}
	t.mu.Lock()
	prev := t.state
	if prev == s {
		t.mu.Unlock()
		return
	}
	t.state = s
	t.mu.Unlock()

	t.logger.Debug("connection state", zap.Stringer("state", s))
	t.stateFeed.Send(s)
	if prev.IsConnected() != s.IsConnected() {
		t.connectedFeed.Send(s.IsConnected())
	}
}

func (t *Transport) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.config.MinReconnectDelay.Std()
	b.MaxInterval = t.config.MaxReconnectDelay.Std()
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
