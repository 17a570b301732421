package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/time/rate"

	"github.com/ethereum/go-ethereum/event"

	"github.com/status-im/nodemanager/appdatabase"
	"github.com/status-im/nodemanager/errors"
	"github.com/status-im/nodemanager/healthmanager"
	"github.com/status-im/nodemanager/nodemanager"
	"github.com/status-im/nodemanager/rpc/connection"
	"github.com/status-im/nodemanager/rpc/network"
	"github.com/status-im/nodemanager/rpc/node"
	"github.com/status-im/nodemanager/signal"
)

type staticTransport struct {
	feed event.Feed

	mu     sync.Mutex
	url    string
	state  connection.State
	active []bool
}

func (t *staticTransport) SetAppActive(active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = append(t.active, active)
}

func (t *staticTransport) appStates() []bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]bool(nil), t.active...)
}

func (t *staticTransport) SetAddress(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.url = url
}

func (t *staticTransport) SwitchURL(url string) {
	t.SetAddress(url)
}

func (t *staticTransport) URL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.url
}

func (t *staticTransport) State() connection.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *staticTransport) SubscribeStates(ch chan<- connection.State) event.Subscription {
	return t.feed.Subscribe(ch)
}

type ServerSuite struct {
	suite.Suite

	transport *staticTransport
	registry  *network.Manager
	manager   *nodemanager.Manager
	health    *healthmanager.NodesHealthManager
	server    *Server
	stopDB    func() error
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	db, stop, err := appdatabase.SetupTestMemorySQLDB(appdatabase.DbInitializer{})
	s.Require().NoError(err)
	s.stopDB = stop

	s.registry = network.NewManager(db, nil, nil, nil)
	s.Require().NoError(s.registry.Init([]node.Node{
		{Address: "wss://a", Name: "A"},
		{Address: "http://node-x", Name: "OldX"},
	}))
	s.Require().NoError(s.registry.SelectNode(node.Node{Address: "wss://a"}))

	s.transport = &staticTransport{state: connection.Connected("wss://a")}
	s.manager = nodemanager.New(nodemanager.Config{DefaultNodeURL: "wss://a"}, s.transport, s.registry)
	s.Require().NoError(s.manager.Start(context.Background()))

	s.health = healthmanager.NewNodesHealthManager()

	s.server = NewServer(NewAPI(s.manager, s.registry, s.health, nil).WithAppState(s.transport), nil)
	s.Require().NoError(s.server.Listen("127.0.0.1:0"))
	s.server.Setup()
	go s.server.Serve()
}

func (s *ServerSuite) TearDownTest() {
	s.server.Stop(context.Background())
	s.manager.Stop()
	s.Require().NoError(s.stopDB())
}

func (s *ServerSuite) url(path string) string {
	return "http://" + s.server.Address() + path
}

func (s *ServerSuite) post(path string, body string) (int, []byte) {
	resp, err := http.Post(s.url(path), "application/json", strings.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	s.Require().NoError(err)
	return resp.StatusCode, buf.Bytes()
}

func (s *ServerSuite) get(path string) (int, []byte) {
	resp, err := http.Get(s.url(path))
	s.Require().NoError(err)
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	s.Require().NoError(err)
	return resp.StatusCode, buf.Bytes()
}

func (s *ServerSuite) errorCode(body []byte) errors.ErrorCode {
	var resp errors.ErrorResponse
	s.Require().NoError(json.Unmarshal(body, &resp))
	return resp.Code
}

func (s *ServerSuite) TestNodes() {
	code, body := s.get("/nodes")
	s.Require().Equal(http.StatusOK, code)

	var nodes []node.Node
	s.Require().NoError(json.Unmarshal(body, &nodes))
	s.Require().Len(nodes, 2)
	s.Require().True(nodes[0].IsSelected)

	code, _ = s.post("/nodes", "{}")
	s.Require().Equal(http.StatusMethodNotAllowed, code)
}

func (s *ServerSuite) TestCheckGenesisOfRegisteredNode() {
	code, body := s.post("/nodes/check-genesis", `{"url":"http://node-x/"}`)
	s.Require().Equal(http.StatusOK, code)
	s.Require().Contains(string(body), `"type":"nodes.node-existing"`)
	s.Require().Contains(string(body), `"existedNodeName":"OldX"`)
	s.Require().Contains(string(body), `"currentNodeUrl":"wss://a"`)
}

func (s *ServerSuite) TestRequestErrors() {
	code, body := s.post("/nodes/check-genesis", `{"url":"node-x"}`)
	s.Require().Equal(http.StatusBadRequest, code)
	s.Require().Equal(errors.InvalidURLErrorCode, s.errorCode(body))

	code, body = s.post("/nodes/connect", `{"address":"wss://unknown"}`)
	s.Require().Equal(http.StatusNotFound, code)
	s.Require().Equal(errors.UnknownNodeCode, s.errorCode(body))

	code, _ = s.post("/nodes/connect", `{"address":`)
	s.Require().Equal(http.StatusBadRequest, code)

	_, err := s.manager.CheckGenesisHash(context.Background(), "wss://custom")
	s.Require().NoError(err)
	code, body = s.post("/nodes/connect", `{"address":"wss://a"}`)
	s.Require().Equal(http.StatusConflict, code)
	s.Require().Equal(errors.BusyErrorCode, s.errorCode(body))

	code, body = s.get("/nodes/status")
	s.Require().Equal(http.StatusOK, code)
	var status nodemanager.Status
	s.Require().NoError(json.Unmarshal(body, &status))
	s.Require().Equal("wss://custom", status.Target)
}

func (s *ServerSuite) TestSignalsWebsocket() {
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.server.Address()+"/signals", nil)
	s.Require().NoError(err)
	defer conn.Close()

	// the upgrade completes before the handler registers the client
	s.Require().Eventually(func() bool {
		s.server.lock.Lock()
		defer s.server.lock.Unlock()
		return len(s.server.connections) == 1
	}, time.Second, 10*time.Millisecond)

	code, _ := s.post("/nodes/check-genesis", `{"url":"http://node-x"}`)
	s.Require().Equal(http.StatusOK, code)

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, data, err := conn.ReadMessage()
	s.Require().NoError(err)

	var envelope struct {
		Type  string                    `json:"type"`
		Event signal.NodeExistingSignal `json:"event"`
	}
	s.Require().NoError(json.Unmarshal(data, &envelope))
	s.Require().Equal(string(signal.NodesNodeExisting), envelope.Type)
	s.Require().Equal("OldX", envelope.Event.ExistedNodeName)
}

func (s *ServerSuite) TestHealth() {
	code, _ := s.get("/health")
	s.Require().Equal(http.StatusOK, code)

	s.health.Update(connection.WaitingForReconnect("wss://a", 1))
	code, body := s.get("/health")
	s.Require().Equal(http.StatusServiceUnavailable, code)
	s.Require().Contains(string(body), `"wss://a"`)
}

func (s *ServerSuite) TestAppState() {
	code, body := s.post("/app/state", `{"active":false}`)
	s.Require().Equal(http.StatusOK, code)
	s.Require().JSONEq(`{"active":false}`, string(body))

	code, _ = s.post("/app/state", `{"active":true}`)
	s.Require().Equal(http.StatusOK, code)
	s.Require().Equal([]bool{false, true}, s.transport.appStates())

	code, _ = s.post("/app/state", `{}`)
	s.Require().Equal(http.StatusBadRequest, code)

	code, _ = s.get("/app/state")
	s.Require().Equal(http.StatusMethodNotAllowed, code)
	s.Require().Equal([]bool{false, true}, s.transport.appStates())
}

func (s *ServerSuite) TestRateLimit() {
	mux := http.NewServeMux()
	NewAPI(s.manager, s.registry, s.health, nil).WithRateLimit(rate.Every(time.Hour), 1).Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	post := func() (int, []byte) {
		resp, err := http.Post(srv.URL+"/nodes/check-genesis", "application/json", strings.NewReader(`{"url":"http://node-x"}`))
		s.Require().NoError(err)
		defer resp.Body.Close()
		buf := new(bytes.Buffer)
		_, err = buf.ReadFrom(resp.Body)
		s.Require().NoError(err)
		return resp.StatusCode, buf.Bytes()
	}

	code, _ := post()
	s.Require().Equal(http.StatusOK, code)

	code, body := post()
	s.Require().Equal(http.StatusTooManyRequests, code)
	s.Require().Equal(errors.RateLimitedCode, s.errorCode(body))

	// reads are not throttled
	resp, err := http.Get(srv.URL + "/nodes")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
}

func TestStatusCode(t *testing.T) {
	require.Equal(t, http.StatusConflict, statusCode(nodemanager.ErrBusy))
	require.Equal(t, http.StatusServiceUnavailable, statusCode(nodemanager.ErrStopped))
	require.Equal(t, http.StatusInternalServerError, statusCode(context.Canceled))
}
