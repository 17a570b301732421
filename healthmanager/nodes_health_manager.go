package healthmanager

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"

	"github.com/status-im/nodemanager/common"
	"github.com/status-im/nodemanager/healthmanager/provider_errors"
	"github.com/status-im/nodemanager/healthmanager/rpcstatus"
	"github.com/status-im/nodemanager/rpc/connection"
)

// StateSource is the transition stream of a transport.
type StateSource interface {
	SubscribeStates(ch chan<- connection.State) event.Subscription
}

// NodesHealthManager tracks the reachability of every node the transport has
// tried, from its connection transitions.
type NodesHealthManager struct {
	mu          sync.RWMutex
	statuses    map[string]rpcstatus.ProviderStatus
	current     string
	subscribers []chan struct{}
	now         func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNodesHealthManager creates a new instance of NodesHealthManager.
func NewNodesHealthManager() *NodesHealthManager {
	return &NodesHealthManager{
		statuses: make(map[string]rpcstatus.ProviderStatus),
		now:      time.Now,
	}
}

// Start follows the transitions of source until Stop is called.
func (h *NodesHealthManager) Start(ctx context.Context, source StateSource) {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	states := make(chan connection.State, 16)
	sub := source.SubscribeStates(states)

	h.wg.Add(1)
	go func() {
		defer common.LogOnPanic()
		defer h.wg.Done()
		defer sub.Unsubscribe()
		for {
			select {
			case state := <-states:
				h.Update(state)
			case <-sub.Err():
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the event processing and unsubscribes.
func (h *NodesHealthManager) Stop() {
	h.mu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	h.wg.Wait()
}

// Update applies one connection transition. Only Connected and
// WaitingForReconnect carry health information. Leaving a node that was up,
// by retargeting or disconnecting, makes its status unknown again.
func (h *NodesHealthManager) Update(state connection.State) {
	h.mu.Lock()
	changed := h.leaveCurrent(state)

	var callStatus rpcstatus.RpcProviderCallStatus
	switch state.Type {
	case connection.StateConnected:
		callStatus = rpcstatus.RpcProviderCallStatus{Name: state.URL, Timestamp: h.now()}
	case connection.StateWaitingForReconnect:
		callStatus = rpcstatus.RpcProviderCallStatus{
			Name:      state.URL,
			Timestamp: h.now(),
			Attempt:   state.Attempt,
			Err:       provider_errors.ErrNodeUnreachable,
		}
	default:
		h.mu.Unlock()
		if changed {
			h.emitNodesHealthStatus()
		}
		return
	}

	status := rpcstatus.NewRpcProviderStatus(callStatus)

	prev, known := h.statuses[state.URL]
	if known {
		// keep the opposite timestamp from the previous observation
		if status.Status == rpcstatus.StatusUp {
			status.LastErrorAt = prev.LastErrorAt
			status.LastError = prev.LastError
		} else {
			status.LastSuccessAt = prev.LastSuccessAt
		}
	}
	h.statuses[state.URL] = status
	h.mu.Unlock()

	if changed || !known || prev.Status != status.Status {
		h.emitNodesHealthStatus()
	}
}

// leaveCurrent demotes the node the transport is moving away from. Must be
// called with h.mu held.
func (h *NodesHealthManager) leaveCurrent(state connection.State) bool {
	previous := h.current
	h.current = state.URL
	if previous == "" || previous == state.URL {
		return false
	}
	status, ok := h.statuses[previous]
	if !ok || status.Status != rpcstatus.StatusUp {
		return false
	}
	status.Status = rpcstatus.StatusUnknown
	h.statuses[previous] = status
	return true
}

// Subscribe allows clients to receive notifications about changes.
func (h *NodesHealthManager) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers = append(h.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber from receiving notifications.
func (h *NodesHealthManager) Unsubscribe(ch chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, subscriber := range h.subscribers {
		if subscriber == ch {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (h *NodesHealthManager) emitNodesHealthStatus() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, subscriber := range h.subscribers {
		select {
		case subscriber <- struct{}{}:
		default:
			// Skip notification if the subscriber's channel is full
		}
	}
}

// Status returns the aggregated status: up if any node is up, down if every
// known node is down, unknown before the first observation.
func (h *NodesHealthManager) Status() rpcstatus.ProviderStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	aggregated := rpcstatus.ProviderStatus{Name: "nodes", Status: rpcstatus.StatusUnknown}
	for _, status := range h.statuses {
		if status.LastSuccessAt.After(aggregated.LastSuccessAt) {
			aggregated.LastSuccessAt = status.LastSuccessAt
		}
		if status.LastErrorAt.After(aggregated.LastErrorAt) {
			aggregated.LastErrorAt = status.LastErrorAt
			aggregated.LastError = status.LastError
		}
		switch status.Status {
		case rpcstatus.StatusUp:
			aggregated.Status = rpcstatus.StatusUp
		case rpcstatus.StatusDown:
			if aggregated.Status == rpcstatus.StatusUnknown {
				aggregated.Status = rpcstatus.StatusDown
			}
		}
	}
	return aggregated
}

// GetStatuses returns a copy of the per node statuses keyed by url.
func (h *NodesHealthManager) GetStatuses() map[string]rpcstatus.ProviderStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	statuses := make(map[string]rpcstatus.ProviderStatus, len(h.statuses))
	for url, status := range h.statuses {
		statuses[url] = status
	}
	return statuses
}
