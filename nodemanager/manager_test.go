package nodemanager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ethereum/go-ethereum/event"

	"github.com/status-im/nodemanager/rpc/connection"
	"github.com/status-im/nodemanager/rpc/node"
)

const (
	testGenesis = "0x7e4e32d0feafd4f9c9414b0be86373f9a1efa904809b683453a9af6856d38ad5"
	waitTimeout = 2 * time.Second
)

type fakeTransport struct {
	feed event.Feed

	mu       sync.Mutex
	url      string
	state    connection.State
	switches chan string
}

func newFakeTransport(state connection.State) *fakeTransport {
	return &fakeTransport{
		state:    state,
		url:      state.URL,
		switches: make(chan string, 100),
	}
}

func (t *fakeTransport) SetAddress(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.url = url
}

func (t *fakeTransport) SwitchURL(url string) {
	t.mu.Lock()
	t.url = url
	t.mu.Unlock()
	t.switches <- url
}

func (t *fakeTransport) URL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.url
}

func (t *fakeTransport) State() connection.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *fakeTransport) SubscribeStates(ch chan<- connection.State) event.Subscription {
	return t.feed.Subscribe(ch)
}

func (t *fakeTransport) emit(states ...connection.State) {
	for _, st := range states {
		t.mu.Lock()
		t.state = st
		t.mu.Unlock()
		t.feed.Send(st)
	}
}

type memRegistry struct {
	mu       sync.Mutex
	nodes    []node.Node
	selected string
	hash     string
	hashErr  error
	subs     []chan struct{}
}

func newMemRegistry(nodes []node.Node, selected string) *memRegistry {
	return &memRegistry{nodes: append([]node.Node(nil), nodes...), selected: selected, hash: testGenesis}
}

func (r *memRegistry) Nodes() ([]node.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]node.Node, len(r.nodes))
	for i, n := range r.nodes {
		n.IsSelected = r.selected != "" && n.Is(r.selected)
		res[i] = n
	}
	return res, nil
}

func (r *memRegistry) SelectedNode() (*node.Node, error) {
	nodes, _ := r.Nodes()
	for i := range nodes {
		if nodes[i].IsSelected {
			return &nodes[i], nil
		}
	}
	return nil, nil
}

func (r *memRegistry) SelectNode(n node.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if node.IndexOf(r.nodes, n.Address) < 0 {
		r.nodes = append(r.nodes, node.Node{Address: n.Address, Name: n.Name})
	}
	r.selected = n.Address
	return nil
}

func (r *memRegistry) LastSelectedAddress() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected, nil
}

func (r *memRegistry) BlockHash(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hash, r.hashErr
}

func (r *memRegistry) Subscribe() chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan struct{}, 1)
	r.subs = append(r.subs, ch)
	return ch
}

func (r *memRegistry) Unsubscribe(ch chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, sub := range r.subs {
		if sub == ch {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

func (r *memRegistry) setHash(hash string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hash, r.hashErr = hash, err
}

var (
	nodeA = node.Node{Address: "wss://a", Name: "A"}
	nodeB = node.Node{Address: "wss://b", Name: "B"}
	nodeC = node.Node{Address: "wss://c", Name: "C"}
)

type ManagerSuite struct {
	suite.Suite

	config    Config
	transport *fakeTransport
	registry  *memRegistry
	manager   *Manager
	events    <-chan Event
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.config = Config{
		DefaultNodeURL:      nodeA.Address,
		ExpectedGenesisHash: testGenesis,
		SwitchAttemptStep:   4,
		ProbeTimeout:        time.Second,
	}
}

func (s *ManagerSuite) TearDownTest() {
	if s.manager != nil {
		s.manager.Stop()
		s.manager = nil
	}
}

func (s *ManagerSuite) start(nodes []node.Node, selected string, state connection.State, opts ...Option) {
	s.transport = newFakeTransport(state)
	s.registry = newMemRegistry(nodes, selected)
	s.manager = New(s.config, s.transport, s.registry, opts...)

	events, unsubscribe := s.manager.SubscribeEvents()
	s.T().Cleanup(unsubscribe)
	s.events = events

	s.Require().NoError(s.manager.Start(context.Background()))
}

func (s *ManagerSuite) expectSwitch(url string) {
	select {
	case got := <-s.transport.switches:
		s.Require().Equal(url, got)
	case <-time.After(waitTimeout):
		s.FailNow("timeout waiting for switch", url)
	}
}

func (s *ManagerSuite) expectNoSwitch() {
	select {
	case got := <-s.transport.switches:
		s.FailNow("unexpected switch", got)
	default:
	}
}

func (s *ManagerSuite) expectEvent(expected EventType) Event {
	select {
	case ev := <-s.events:
		s.Require().Equal(expected, ev.Type, ev.String())
		return ev
	case <-time.After(waitTimeout):
		s.FailNow("timeout waiting for event", string(expected))
	}
	return Event{}
}

func (s *ManagerSuite) expectNoEvent() {
	select {
	case ev := <-s.events:
		s.FailNow("unexpected event", ev.String())
	default:
	}
}

// emit sends states and waits until the manager processed the last one.
func (s *ManagerSuite) emit(states ...connection.State) {
	s.transport.emit(states...)
	last := states[len(states)-1]
	s.Require().Eventually(func() bool {
		return s.status().State == last
	}, waitTimeout, 5*time.Millisecond)
}

func (s *ManagerSuite) status() Status {
	st, err := s.manager.Status(context.Background())
	s.Require().NoError(err)
	return st
}

func (s *ManagerSuite) wait(req *Request) Event {
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	ev, err := req.Wait(ctx)
	s.Require().NoError(err)
	s.Require().Equal(req.ID, ev.RequestID)
	return ev
}

func (s *ManagerSuite) pending(req *Request) {
	select {
	case <-req.Done():
		s.FailNow("request resolved unexpectedly")
	default:
	}
}

func (s *ManagerSuite) TestStartSeedsTransportWithSelectedNode() {
	s.start([]node.Node{nodeA, nodeB}, nodeB.Address, connection.Disconnected())
	s.Require().Equal(nodeB.Address, s.transport.URL())
	s.Require().False(s.manager.IsConnected())
}

func (s *ManagerSuite) TestStartFallsBackToDefaultNode() {
	s.config.DefaultNodeURL = "wss://default"
	s.start(nil, "", connection.Disconnected())
	s.Require().Equal("wss://default", s.transport.URL())
}

func (s *ManagerSuite) TestManualSwitchSucceeds() {
	s.start([]node.Node{nodeA, nodeB, nodeC}, nodeA.Address, connection.Connected(nodeA.Address))

	req, err := s.manager.TryToConnect(context.Background(), nodeB)
	s.Require().NoError(err)
	s.expectSwitch(nodeB.Address)
	s.Require().Equal("manual-switch", s.status().Session)

	s.emit(connection.Connecting(nodeB.Address), connection.Connected(nodeB.Address))

	ev := s.wait(req)
	s.Require().Equal(EventConnected, ev.Type)
	s.Require().Equal(nodeB.Address, ev.Address)
	s.Require().Equal(ev, s.expectEvent(EventConnected))

	selected, err := s.registry.SelectedNode()
	s.Require().NoError(err)
	s.Require().Equal(nodeB.Address, selected.Address)
	s.Require().Empty(s.status().Session)
}

func (s *ManagerSuite) TestManualSwitchFailsAndReverts() {
	s.start([]node.Node{nodeA, nodeB, nodeC}, nodeA.Address, connection.Connected(nodeA.Address))

	req, err := s.manager.TryToConnect(context.Background(), nodeB)
	s.Require().NoError(err)
	s.expectSwitch(nodeB.Address)

	s.emit(connection.Connecting(nodeB.Address), connection.WaitingForReconnect(nodeB.Address, 1))

	ev := s.wait(req)
	s.Require().Equal(EventConnectionFailed, ev.Type)
	s.Require().Equal(nodeB.Address, ev.Address)
	s.expectSwitch(nodeA.Address)

	selected, err := s.registry.SelectedNode()
	s.Require().NoError(err)
	s.Require().Equal(nodeA.Address, selected.Address)
}

func (s *ManagerSuite) TestStaleTransitionsDoNotResolveSession() {
	s.start([]node.Node{nodeA, nodeB, nodeC}, nodeA.Address, connection.Connected(nodeA.Address))

	req, err := s.manager.TryToConnect(context.Background(), nodeB)
	s.Require().NoError(err)
	s.expectSwitch(nodeB.Address)

	s.emit(
		connection.WaitingForReconnect(nodeA.Address, 1),
		connection.Connected(nodeC.Address),
		connection.WaitingForReconnect(nodeC.Address, 1),
		connection.Disconnected(),
	)
	s.pending(req)
	s.expectNoSwitch()

	s.emit(connection.Connected(nodeB.Address + "/"))
	s.Require().Equal(EventConnected, s.wait(req).Type)
}

func (s *ManagerSuite) TestConcurrentRequestsAreRejected() {
	s.start([]node.Node{nodeA, nodeB, nodeC}, nodeA.Address, connection.Connected(nodeA.Address))

	req, err := s.manager.TryToConnect(context.Background(), nodeB)
	s.Require().NoError(err)
	s.expectSwitch(nodeB.Address)

	_, err = s.manager.TryToConnect(context.Background(), nodeC)
	s.Require().True(errors.Is(err, ErrBusy))
	_, err = s.manager.CheckGenesisHash(context.Background(), "wss://custom")
	s.Require().True(errors.Is(err, ErrBusy))
	s.expectNoSwitch()

	s.emit(connection.Connected(nodeB.Address))
	s.wait(req)

	req, err = s.manager.TryToConnect(context.Background(), nodeC)
	s.Require().NoError(err)
	s.expectSwitch(nodeC.Address)
	s.pending(req)
}

func (s *ManagerSuite) TestInvalidURLIsRejected() {
	s.start([]node.Node{nodeA}, nodeA.Address, connection.Connected(nodeA.Address))

	_, err := s.manager.TryToConnect(context.Background(), node.Node{Address: "ftp://x"})
	s.Require().ErrorIs(err, ErrInvalidURL)
	_, err = s.manager.CheckGenesisHash(context.Background(), "node-x")
	s.Require().ErrorIs(err, ErrInvalidURL)
	s.expectNoSwitch()
}

func (s *ManagerSuite) TestSwitchTimeout() {
	s.config.SwitchTimeout = 50 * time.Millisecond
	s.start([]node.Node{nodeA, nodeB}, nodeA.Address, connection.Connected(nodeA.Address))

	req, err := s.manager.TryToConnect(context.Background(), nodeB)
	s.Require().NoError(err)
	s.expectSwitch(nodeB.Address)
	s.emit(connection.Connecting(nodeB.Address))

	ev := s.wait(req)
	s.Require().Equal(EventConnectionFailed, ev.Type)
	s.expectSwitch(nodeA.Address)
}

func (s *ManagerSuite) TestGenesisProbeSucceeds() {
	s.start([]node.Node{nodeA, nodeB}, nodeA.Address, connection.Connected(nodeA.Address))

	req, err := s.manager.CheckGenesisHash(context.Background(), "http://node-x")
	s.Require().NoError(err)
	s.expectSwitch("http://node-x")
	s.Require().Equal("genesis-probe", s.status().Session)
	s.Require().Equal("http://node-x", s.status().Target)

	s.transport.emit(connection.Connecting("http://node-x"), connection.Connected("http://node-x"))

	ev := s.wait(req)
	s.Require().Equal(EventGenesisValidated, ev.Type)
	s.Require().True(ev.Result)
	s.expectSwitch(nodeA.Address)
	s.Require().Equal(nodeA.Address, s.transport.URL())
	s.Require().Empty(s.status().Session)

	// the probed node is not registered
	nodes, err := s.registry.Nodes()
	s.Require().NoError(err)
	s.Require().Len(nodes, 2)
}

func (s *ManagerSuite) TestGenesisProbeRejectsOtherChain() {
	s.start([]node.Node{nodeA}, nodeA.Address, connection.Connected(nodeA.Address))
	s.registry.setHash("0x1234", nil)

	req, err := s.manager.CheckGenesisHash(context.Background(), "wss://other-chain")
	s.Require().NoError(err)
	s.expectSwitch("wss://other-chain")
	s.transport.emit(connection.Connected("wss://other-chain"))

	ev := s.wait(req)
	s.Require().False(ev.Result)
	s.expectSwitch(nodeA.Address)
}

func (s *ManagerSuite) TestGenesisProbeTrustedEnvironment() {
	s.config.TrustedEnvironment = true
	s.start([]node.Node{nodeA}, nodeA.Address, connection.Connected(nodeA.Address))
	s.registry.setHash("0x1234", nil)

	req, err := s.manager.CheckGenesisHash(context.Background(), "wss://test-net")
	s.Require().NoError(err)
	s.expectSwitch("wss://test-net")
	s.transport.emit(connection.Connected("wss://test-net"))

	s.Require().True(s.wait(req).Result)
	s.expectSwitch(nodeA.Address)
}

func (s *ManagerSuite) TestGenesisProbeReadFailure() {
	var calls []string
	verifier := func(expected, actual string, trusted bool) bool {
		calls = append(calls, actual)
		return true
	}
	s.start([]node.Node{nodeA}, nodeA.Address, connection.Connected(nodeA.Address), WithGenesisVerifier(verifier))
	s.registry.setHash("", errors.New("method not found"))

	req, err := s.manager.CheckGenesisHash(context.Background(), "wss://custom")
	s.Require().NoError(err)
	s.expectSwitch("wss://custom")
	s.transport.emit(connection.Connected("wss://custom"))

	s.Require().False(s.wait(req).Result)
	s.expectSwitch(nodeA.Address)
	s.Require().Empty(calls)
}

func (s *ManagerSuite) TestGenesisProbeUnreachableNode() {
	s.start([]node.Node{nodeA}, nodeA.Address, connection.Connected(nodeA.Address))

	req, err := s.manager.CheckGenesisHash(context.Background(), "wss://custom")
	s.Require().NoError(err)
	s.expectSwitch("wss://custom")
	s.emit(connection.Connecting("wss://custom"), connection.WaitingForReconnect("wss://custom", 1))

	ev := s.wait(req)
	s.Require().Equal(EventGenesisValidated, ev.Type)
	s.Require().False(ev.Result)
	s.expectSwitch(nodeA.Address)
	s.Require().Empty(s.status().Session)
}

func (s *ManagerSuite) TestGenesisProbeDuplicateNode() {
	oldX := node.Node{Address: "http://node-x", Name: "OldX"}
	s.start([]node.Node{nodeA, oldX}, nodeA.Address, connection.Connected(nodeA.Address))

	for _, url := range []string{"http://node-x/", "http://node-x"} {
		req, err := s.manager.CheckGenesisHash(context.Background(), url)
		s.Require().NoError(err)

		ev := s.wait(req)
		s.Require().Equal(EventNodeExisting, ev.Type)
		s.Require().Equal("OldX", ev.ExistedNodeName)
		s.Require().Equal(nodeA.Address, ev.CurrentNodeURL)
		s.expectEvent(EventNodeExisting)
	}
	s.expectNoSwitch()
	s.Require().Empty(s.status().Session)
}

func (s *ManagerSuite) TestRequestsWithoutConnection() {
	s.start([]node.Node{nodeA, nodeB}, nodeA.Address, connection.WaitingForReconnect(nodeA.Address, 1))

	req, err := s.manager.TryToConnect(context.Background(), nodeB)
	s.Require().NoError(err)
	s.Require().Equal(EventNoConnection, s.wait(req).Type)
	s.expectEvent(EventNoConnection)

	req, err = s.manager.CheckGenesisHash(context.Background(), "wss://custom")
	s.Require().NoError(err)
	s.Require().Equal(EventNoConnection, s.wait(req).Type)
	s.expectEvent(EventNoConnection)

	s.expectNoEvent()
	s.expectNoSwitch()
}

func (s *ManagerSuite) TestConnectionStateStream() {
	s.start([]node.Node{nodeA}, nodeA.Address, connection.Connected(nodeA.Address))

	states, unsubscribe := s.manager.SubscribeConnectionState()
	defer unsubscribe()
	s.Require().True(<-states)

	s.emit(connection.WaitingForReconnect(nodeA.Address, 1))
	s.Require().False(<-states)
	s.Require().False(s.manager.IsConnected())

	s.emit(connection.Connecting(nodeA.Address))
	s.emit(connection.Connected(nodeA.Address))
	s.Require().True(<-states)
	s.Require().True(s.manager.IsConnected())
}

func (s *ManagerSuite) TestStopResolvesPendingRequest() {
	s.start([]node.Node{nodeA, nodeB}, nodeA.Address, connection.Connected(nodeA.Address))

	req, err := s.manager.TryToConnect(context.Background(), nodeB)
	s.Require().NoError(err)

	s.manager.Stop()
	_, err = req.Wait(context.Background())
	s.Require().ErrorIs(err, ErrStopped)

	_, ok := <-s.events
	s.Require().False(ok)

	_, err = s.manager.TryToConnect(context.Background(), nodeB)
	s.Require().ErrorIs(err, ErrStopped)
	s.Require().ErrorIs(s.manager.Start(context.Background()), ErrStopped)
}

func TestRequestWaitHonoursContext(t *testing.T) {
	req := newRequest()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := req.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)

	req.resolve(Connected("wss://a"), nil)
	req.resolve(ConnectionFailed("wss://a"), nil)
	ev, err := req.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, EventConnected, ev.Type)
	require.Equal(t, req.ID, ev.RequestID)
}
