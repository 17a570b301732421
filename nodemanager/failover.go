package nodemanager

import (
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/status-im/nodemanager/rpc/connection"
	"github.com/status-im/nodemanager/rpc/node"
)

// failover is the state of one automatic failover sweep.
type failover struct {
	started bool
	// exhausted is set once AllNodesUnavailable was reported and cleared by
	// the next Connected.
	exhausted bool
	attempted mapset.Set[string]
}

func newFailover() failover {
	return failover{attempted: mapset.NewThreadUnsafeSet[string]()}
}

func (f *failover) reset() {
	f.started = false
	f.exhausted = false
	f.attempted.Clear()
}

// wasAttempted matches address with or without a trailing slash.
func (f *failover) wasAttempted(address string) bool {
	trimmed := strings.TrimSuffix(address, "/")
	return f.attempted.Contains(address) || f.attempted.Contains(trimmed) || f.attempted.Contains(trimmed+"/")
}

// attemptedURLs returns the urls tried in the current sweep, sorted.
func (f *failover) attemptedURLs() []string {
	urls := f.attempted.ToSlice()
	sort.Strings(urls)
	return urls
}

// supervise moves the transport to the next registered node every
// SwitchAttemptStep reconnect attempts, until every node was tried once.
// It never redirects the transport while a session is in flight.
func (m *Manager) supervise(st connection.State, busy bool) {
	if !m.config.AutoSwitch || len(m.nodes) == 0 {
		return
	}

	f := &m.failover
	if st.Type == connection.StateConnected {
		if f.attempted.Cardinality() > 0 {
			m.logger.Debug("failover sweep ended", zap.String("url", st.URL), zap.Strings("attempted", f.attemptedURLs()))
		}
		f.reset()
		return
	}

	if busy || f.exhausted {
		return
	}

	if !f.started && f.attempted.Cardinality() > 0 {
		f.exhausted = true
		exhaustedCounter.Inc()
		m.logger.Warn("all nodes unavailable", zap.Strings("attempted", f.attemptedURLs()))
		m.publish(AllNodesUnavailable())
		return
	}

	if st.Type != connection.StateWaitingForReconnect || st.Attempt <= 0 || st.Attempt%m.config.SwitchAttemptStep != 0 {
		return
	}

	f.started = true
	if f.wasAttempted(st.URL) {
		f.started = false
		return
	}

	next := m.nodes[(m.indexOfCurrent(st.URL)+1)%len(m.nodes)]
	m.logger.Info("switching to next node",
		zap.String("from", st.URL),
		zap.String("to", next.Address),
		zap.Int("attempt", st.Attempt))

	m.transport.SwitchURL(next.Address)
	f.attempted.Add(st.URL)
	failoverCounter.Inc()

	if err := m.registry.SelectNode(next); err != nil {
		m.logger.Error("failed to persist selected node", zap.String("address", next.Address), zap.Error(err))
	}
	m.refreshRegistry()
}

// indexOfCurrent locates url in the registry, falling back to the selected
// node. It returns -1 when neither is registered so that failover starts
// from the first node.
func (m *Manager) indexOfCurrent(url string) int {
	if idx := node.IndexOf(m.nodes, url); idx >= 0 {
		return idx
	}
	if m.selected != nil {
		return node.IndexOf(m.nodes, m.selected.Address)
	}
	return -1
}
