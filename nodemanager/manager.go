package nodemanager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ethereum/go-ethereum/event"

	"github.com/status-im/nodemanager/common"
	"github.com/status-im/nodemanager/rpc/connection"
	"github.com/status-im/nodemanager/rpc/node"
)

const stateBufferSize = 64

// Option configures a Manager.
type Option func(*Manager)

// WithGenesisVerifier replaces VerifyGenesis.
func WithGenesisVerifier(v GenesisVerifier) Option {
	return func(m *Manager) {
		m.verify = v
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// Status is a snapshot of the manager state.
type Status struct {
	State    connection.State `json:"state"`
	Selected *node.Node       `json:"selected,omitempty"`
	// Session and Target describe the request in flight, if any.
	Session   string   `json:"session,omitempty"`
	Target    string   `json:"target,omitempty"`
	Attempted []string `json:"attempted,omitempty"`
	Exhausted bool     `json:"exhausted"`
}

type command struct {
	kind    sessionKind
	node    node.Node
	request *Request
	reply   chan error
}

// Manager selects the node the transport is connected to. It switches nodes
// on request, validates custom nodes by their genesis hash and fails over to
// the next registered node when the current one stays unreachable.
//
// All session state is owned by a single goroutine. Public methods send
// messages to it, so Manager is safe for concurrent use. A stopped Manager
// cannot be restarted.
type Manager struct {
	config    Config
	transport Transport
	registry  Registry
	verify    GenesisVerifier
	logger    *zap.Logger

	events     *broadcaster[Event]
	connection *broadcaster[bool]
	connected  atomic.Bool

	commands     chan command
	statuses     chan chan Status
	probeResults chan probeResult
	timeouts     chan uint64

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool

	// owned by the loop goroutine
	state     connection.State
	nodes     []node.Node
	selected  *node.Node
	session   *session
	failover  failover
	sessionID uint64
}

func New(config Config, transport Transport, registry Registry, opts ...Option) *Manager {
	m := &Manager{
		config:       config.withDefaults(),
		transport:    transport,
		registry:     registry,
		verify:       VerifyGenesis,
		logger:       zap.NewNop(),
		events:       newBroadcaster[Event](),
		connection:   newBroadcaster[bool](),
		commands:     make(chan command),
		statuses:     make(chan chan Status),
		probeResults: make(chan probeResult),
		timeouts:     make(chan uint64),
		failover:     newFailover(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("nodemanager")
	return m
}

// Start seeds the transport with the last selected node, or the default node
// url, and starts following transport and registry changes.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrStopped
	}
	if m.cancel != nil {
		return nil
	}

	address, err := m.registry.LastSelectedAddress()
	if err != nil {
		m.logger.Warn("failed to read selected node", zap.Error(err))
	}
	if address == "" {
		address = m.config.DefaultNodeURL
	}
	m.logger.Info("starting node manager", zap.String("address", address), zap.Bool("autoSwitch", m.config.AutoSwitch))
	m.transport.SetAddress(address)

	states := make(chan connection.State, stateBufferSize)
	sub := m.transport.SubscribeStates(states)
	notifications := m.registry.Subscribe()

	m.refreshRegistry()
	m.state = m.transport.State()
	m.connected.Store(m.state.IsConnected())

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go func() {
		defer common.LogOnPanic()
		defer close(m.done)
		m.loop(ctx, states, sub, notifications)
	}()
	return nil
}

// Stop ends the loop. A pending request resolves with ErrStopped and every
// subscription channel is closed.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.stopped = true
	m.mu.Unlock()

	if cancel == nil {
		m.events.close()
		m.connection.close()
		return
	}
	cancel()
	<-done
}

// TryToConnect switches the transport to n. The request resolves with
// Connected once the transport reports Connected(n.Address), or with
// ConnectionFailed when it reports WaitingForReconnect for it; the previous
// node is restored in that case.
func (m *Manager) TryToConnect(ctx context.Context, n node.Node) (*Request, error) {
	if !node.ValidAddress(n.Address) {
		return nil, ErrInvalidURL
	}
	return m.submit(ctx, manualSwitch, n)
}

// CheckGenesisHash connects to url, reads its genesis hash and reconnects to
// the previous node. The request resolves with GenesisValidated, or with
// NodeExisting when url is already registered.
func (m *Manager) CheckGenesisHash(ctx context.Context, url string) (*Request, error) {
	if !node.ValidAddress(url) {
		return nil, ErrInvalidURL
	}
	return m.submit(ctx, genesisProbe, node.Node{Address: url, Name: url})
}

func (m *Manager) submit(ctx context.Context, kind sessionKind, n node.Node) (*Request, error) {
	m.mu.Lock()
	running, done := m.cancel != nil, m.done
	m.mu.Unlock()
	if !running {
		return nil, ErrStopped
	}

	cmd := command{
		kind:    kind,
		node:    n,
		request: newRequest(),
		reply:   make(chan error, 1),
	}

	select {
	case m.commands <- cmd:
	case <-done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		if err != nil {
			return nil, err
		}
		return cmd.request, nil
	case <-done:
		return nil, ErrStopped
	}
}

// SubscribeEvents returns a channel of every event and a function ending the
// subscription. A subscriber that does not keep up misses events.
func (m *Manager) SubscribeEvents() (<-chan Event, func()) {
	return m.events.subscribe()
}

// SubscribeConnectionState returns liveness changes, starting with the current value.
func (m *Manager) SubscribeConnectionState() (<-chan bool, func()) {
	return m.connection.subscribeFrom(m.connected.Load)
}

// Status returns a snapshot of the manager state.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	m.mu.Lock()
	running, done := m.cancel != nil, m.done
	m.mu.Unlock()
	if !running {
		return Status{}, ErrStopped
	}

	reply := make(chan Status, 1)
	select {
	case m.statuses <- reply:
	case <-done:
		return Status{}, ErrStopped
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	return <-reply, nil
}

func (m *Manager) status() Status {
	st := Status{
		State:     m.state,
		Attempted: m.failover.attemptedURLs(),
		Exhausted: m.failover.exhausted,
	}
	if m.selected != nil {
		selected := *m.selected
		st.Selected = &selected
	}
	if m.session != nil {
		st.Session = m.session.kind.String()
		st.Target = m.session.target.Address
	}
	return st
}

// IsConnected reports the last observed liveness of the transport.
func (m *Manager) IsConnected() bool {
	return m.connected.Load()
}

func (m *Manager) loop(ctx context.Context, states <-chan connection.State, sub event.Subscription, notifications chan struct{}) {
	defer m.shutdown(sub, notifications)

	subErr := sub.Err()
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-states:
			m.handleState(ctx, st)
		case err := <-subErr:
			m.logger.Warn("transport state subscription ended", zap.Error(err))
			subErr = nil
		case _, ok := <-notifications:
			if !ok {
				notifications = nil
				continue
			}
			m.refreshRegistry()
		case cmd := <-m.commands:
			cmd.reply <- m.handleCommand(ctx, cmd)
		case reply := <-m.statuses:
			reply <- m.status()
		case res := <-m.probeResults:
			m.handleProbeResult(res)
		case id := <-m.timeouts:
			m.handleTimeout(id)
		}
	}
}

func (m *Manager) shutdown(sub event.Subscription, notifications chan struct{}) {
	sub.Unsubscribe()
	if notifications != nil {
		m.registry.Unsubscribe(notifications)
	}
	if s := m.session; s != nil {
		m.session = nil
		s.stop()
		s.request.resolve(Event{}, ErrStopped)
	}
	m.events.close()
	m.connection.close()
	m.logger.Info("node manager stopped")
}

func (m *Manager) handleState(ctx context.Context, st connection.State) {
	m.state = st
	connected := st.IsConnected()
	m.connection.publishWith(func() (bool, bool) {
		return connected, m.connected.Swap(connected) != connected
	})

	busy := m.session != nil
	if busy {
		m.handleSessionState(ctx, st)
	}
	m.supervise(st, busy)
}

func (m *Manager) handleCommand(ctx context.Context, cmd command) error {
	if m.session != nil {
		m.logger.Debug("rejecting request, session in flight",
			zap.Stringer("kind", cmd.kind),
			zap.Stringer("inFlight", m.session.kind))
		return ErrBusy
	}

	if !m.state.IsConnected() {
		m.resolve(cmd.request, NoConnection())
		return nil
	}

	m.refreshRegistry()

	if cmd.kind == genesisProbe {
		if existing, ok := node.FindByAddress(m.nodes, cmd.node.Address); ok {
			m.resolve(cmd.request, NodeExisting(existing.Name, m.currentAddress()))
			return nil
		}
	}

	m.sessionID++
	s := &session{
		id:       m.sessionID,
		kind:     cmd.kind,
		target:   cmd.node,
		revertTo: m.currentAddress(),
		request:  cmd.request,
	}
	if m.config.SwitchTimeout > 0 {
		id := s.id
		s.timer = time.AfterFunc(m.config.SwitchTimeout, func() {
			select {
			case m.timeouts <- id:
			case <-ctx.Done():
			}
		})
	}
	m.session = s

	m.logger.Info("session started",
		zap.Stringer("kind", s.kind),
		zap.String("target", s.target.Address),
		zap.String("revertTo", s.revertTo),
		zap.String("request", s.request.ID))
	m.transport.SwitchURL(s.target.Address)
	return nil
}

func (m *Manager) handleSessionState(ctx context.Context, st connection.State) {
	s := m.session
	if !s.matches(st.URL) {
		return
	}

	switch st.Type {
	case connection.StateConnected:
		if s.kind == manualSwitch {
			m.completeSwitch(s)
		} else if s.phase == probeConnecting {
			m.readGenesis(ctx, s)
		}
	case connection.StateWaitingForReconnect:
		m.failSession(s, outcomeFailure)
	}
}

func (m *Manager) completeSwitch(s *session) {
	m.session = nil
	s.stop()

	if err := m.registry.SelectNode(s.target); err != nil {
		m.logger.Error("failed to persist selected node", zap.String("address", s.target.Address), zap.Error(err))
	}
	m.refreshRegistry()

	switchCounter.WithLabelValues(outcomeSuccess).Inc()
	m.resolve(s.request, Connected(s.target.Address))
}

func (m *Manager) failSession(s *session, outcome string) {
	m.session = nil
	s.stop()

	m.logger.Info("session failed",
		zap.Stringer("kind", s.kind),
		zap.String("target", s.target.Address),
		zap.String("outcome", outcome))
	m.transport.SwitchURL(s.revertTo)

	if s.kind == manualSwitch {
		switchCounter.WithLabelValues(outcome).Inc()
		m.resolve(s.request, ConnectionFailed(s.target.Address))
		return
	}
	probeCounter.WithLabelValues(outcome).Inc()
	m.resolve(s.request, GenesisValidated(false))
}

func (m *Manager) readGenesis(ctx context.Context, s *session) {
	s.phase = probeReading
	readCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	s.cancelRead = cancel

	id := s.id
	go func() {
		defer common.LogOnPanic()
		hash, err := m.registry.BlockHash(readCtx)
		select {
		case m.probeResults <- probeResult{sessionID: id, hash: hash, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (m *Manager) handleProbeResult(res probeResult) {
	s := m.session
	if s == nil || s.id != res.sessionID {
		return
	}
	m.session = nil
	s.stop()

	result := false
	if res.err != nil {
		m.logger.Warn("failed to read genesis hash", zap.String("url", s.target.Address), zap.Error(res.err))
	} else {
		result = m.verify(m.config.ExpectedGenesisHash, res.hash, m.config.TrustedEnvironment)
	}

	m.logger.Info("genesis hash checked",
		zap.String("url", s.target.Address),
		zap.String("hash", res.hash),
		zap.Bool("valid", result))
	m.transport.SwitchURL(s.revertTo)

	outcome := outcomeSuccess
	if !result {
		outcome = outcomeFailure
	}
	probeCounter.WithLabelValues(outcome).Inc()
	m.resolve(s.request, GenesisValidated(result))
}

func (m *Manager) handleTimeout(id uint64) {
	if s := m.session; s != nil && s.id == id {
		m.failSession(s, outcomeTimeout)
	}
}

// resolve completes req with ev and broadcasts it.
func (m *Manager) resolve(req *Request, ev Event) {
	ev.RequestID = req.ID
	req.resolve(ev, nil)
	m.publish(ev)
}

func (m *Manager) publish(ev Event) {
	m.logger.Debug("event", zap.Stringer("event", ev))
	m.events.publish(ev)
	sendSignal(ev)
}

// currentAddress is the selected node, or the transport url when nothing
// was ever selected.
func (m *Manager) currentAddress() string {
	if m.selected != nil {
		return m.selected.Address
	}
	return m.transport.URL()
}

func (m *Manager) refreshRegistry() {
	nodes, err := m.registry.Nodes()
	if err != nil {
		m.logger.Error("failed to read nodes", zap.Error(err))
		return
	}
	selected, err := m.registry.SelectedNode()
	if err != nil {
		m.logger.Error("failed to read selected node", zap.Error(err))
		return
	}
	m.nodes = nodes
	m.selected = selected
}
