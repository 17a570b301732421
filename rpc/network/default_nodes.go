package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"github.com/status-im/nodemanager/circuitbreaker"
	"github.com/status-im/nodemanager/rpc/node"
)

const (
	defaultNodesCacheKey = "default-nodes"
	maxCatalogSize       = 1 << 20
)

var (
	// ErrEmptyCatalog is returned when a source serves no usable node.
	ErrEmptyCatalog = errors.New("default nodes catalog is empty")
	// ErrFetchCancelled is returned when the fetch stopped before every source was tried.
	ErrFetchCancelled = errors.New("default nodes fetch cancelled")
)

type catalogEntry struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// DefaultNodesFetcher downloads the default node catalog. Sources are tried
// in order and the first one that answers wins. Results are cached for the
// configured TTL.
type DefaultNodesFetcher struct {
	urls    []string
	client  *retryablehttp.Client
	breaker *circuitbreaker.CircuitBreaker
	cache   *ttlcache.Cache[string, []node.Node]
	logger  *zap.Logger
}

// FetcherOption configures a DefaultNodesFetcher.
type FetcherOption func(*DefaultNodesFetcher)

// WithRetryPolicy overrides the retry count and wait bounds of the http client.
func WithRetryPolicy(retryMax int, waitMin, waitMax time.Duration) FetcherOption {
	return func(f *DefaultNodesFetcher) {
		f.client.RetryMax = retryMax
		f.client.RetryWaitMin = waitMin
		f.client.RetryWaitMax = waitMax
	}
}

func NewDefaultNodesFetcher(urls []string, ttl time.Duration, logger *zap.Logger, opts ...FetcherOption) *DefaultNodesFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("default-nodes")

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = &leveledLogger{logger.Sugar()}

	f := &DefaultNodesFetcher{
		urls:   urls,
		client: client,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
			Timeout:                30000,
			MaxConcurrentRequests:  10,
			RequestVolumeThreshold: 5,
			SleepWindow:            60000,
			ErrorPercentThreshold:  50,
		}),
		cache:  ttlcache.New[string, []node.Node](ttlcache.WithTTL[string, []node.Node](ttl)),
		logger: logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the cached catalog or downloads it.
func (f *DefaultNodesFetcher) Fetch(ctx context.Context) ([]node.Node, error) {
	if item := f.cache.Get(defaultNodesCacheKey); item != nil {
		return item.Value(), nil
	}
	if len(f.urls) == 0 {
		return nil, errors.New("no default nodes sources configured")
	}

	cmd := circuitbreaker.NewCommand(ctx, nil)
	for _, url := range f.urls {
		url := url
		circuit := "default-nodes-" + url
		if circuitbreaker.IsCircuitOpen(circuit) {
			f.logger.Debug("default nodes source circuit is open", zap.String("url", url))
		}
		cmd.Add(circuitbreaker.NewFunctor(func(ctx context.Context) ([]any, error) {
			nodes, err := f.fetchFrom(ctx, url)
			if err != nil {
				if ctx.Err() != nil {
					// the caller gave up, the remaining sources are not tried
					cmd.Cancel()
				}
				f.logger.Warn("default nodes source failed", zap.String("url", url), zap.Error(err))
				return nil, err
			}
			return []any{nodes}, nil
		}, circuit))
	}

	result := f.breaker.Execute(cmd)
	if result.Cancelled() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.Join(ErrFetchCancelled, result.Error())
	}
	if result.Error() != nil {
		return nil, result.Error()
	}

	nodes := result.Result()[0].([]node.Node)
	f.cache.Set(defaultNodesCacheKey, nodes, ttlcache.DefaultTTL)
	return nodes, nil
}

func (f *DefaultNodesFetcher) fetchFrom(ctx context.Context, url string) ([]node.Node, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize))
	if err != nil {
		return nil, err
	}

	var entries []catalogEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	nodes := make([]node.Node, 0, len(entries))
	for _, e := range entries {
		if !node.ValidAddress(e.Address) || node.IndexOf(nodes, e.Address) >= 0 {
			continue
		}
		name := e.Name
		if name == "" {
			name = e.Address
		}
		nodes = append(nodes, node.Node{Address: e.Address, Name: name})
	}
	if len(nodes) == 0 {
		return nil, ErrEmptyCatalog
	}
	return nodes, nil
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, keysAndValues...)
}
