package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/status-im/nodemanager/errors"
	"github.com/status-im/nodemanager/healthmanager/rpcstatus"
	"github.com/status-im/nodemanager/nodemanager"
	"github.com/status-im/nodemanager/rpc/network"
	"github.com/status-im/nodemanager/rpc/node"
	"github.com/status-im/nodemanager/signal"
)

const maxRequestSize = 1 << 16

type NodeManager interface {
	TryToConnect(ctx context.Context, n node.Node) (*nodemanager.Request, error)
	CheckGenesisHash(ctx context.Context, url string) (*nodemanager.Request, error)
	Status(ctx context.Context) (nodemanager.Status, error)
}

type NodeRegistry interface {
	Nodes() ([]node.Node, error)
	Find(address string) (*node.Node, error)
}

// AppState receives the lifecycle of the host application.
type AppState interface {
	SetAppActive(active bool)
}

type HealthReporter interface {
	Status() rpcstatus.ProviderStatus
	GetStatuses() map[string]rpcstatus.ProviderStatus
}

// API exposes the node manager over HTTP. Requests that switch the
// transport block until they resolve and answer with the resolving signal.
type API struct {
	manager  NodeManager
	registry NodeRegistry
	health   HealthReporter
	appState AppState
	logger   *zap.Logger

	// limiter throttles the requests that move the transport, nil means unlimited.
	limiter *rate.Limiter
}

type connectRequest struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

type appStateRequest struct {
	Active *bool `json:"active"`
}

type appStateResponse struct {
	Active bool `json:"active"`
}

type checkGenesisRequest struct {
	URL string `json:"url"`
}

type healthResponse struct {
	Status rpcstatus.ProviderStatus            `json:"status"`
	Nodes  map[string]rpcstatus.ProviderStatus `json:"nodes"`
}

func NewAPI(manager NodeManager, registry NodeRegistry, health HealthReporter, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		manager:  manager,
		registry: registry,
		health:   health,
		logger:   logger.Named("api"),
	}
}

// WithRateLimit caps connect and check-genesis requests to r per second
// with the given burst.
func (a *API) WithRateLimit(r rate.Limit, burst int) *API {
	a.limiter = rate.NewLimiter(r, burst)
	return a
}

// WithAppState serves POST /app/state, which pauses the transport while the
// host application is in the background.
func (a *API) WithAppState(state AppState) *API {
	a.appState = state
	return a
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/nodes/connect", a.post(a.connect))
	mux.HandleFunc("/nodes/check-genesis", a.post(a.checkGenesis))
	mux.HandleFunc("/nodes/status", a.get(a.status))
	mux.HandleFunc("/nodes", a.get(a.nodes))
	mux.HandleFunc("/health", a.get(a.healthStatus))
	if a.appState != nil {
		mux.HandleFunc("/app/state", a.method(http.MethodPost, a.setAppState))
	}
}

func (a *API) connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if !a.decode(w, r, &req) {
		return
	}

	target := node.Node{Address: req.Address, Name: req.Name}
	if req.Name == "" {
		registered, err := a.registry.Find(req.Address)
		if stderrors.Is(err, network.ErrNodeNotFound) {
			a.writeError(w, errors.New(errors.UnknownNodeCode, req.Address))
			return
		}
		if err != nil {
			a.writeError(w, err)
			return
		}
		target = *registered
	}

	request, err := a.manager.TryToConnect(r.Context(), target)
	a.writeResolved(w, r, request, err)
}

func (a *API) checkGenesis(w http.ResponseWriter, r *http.Request) {
	var req checkGenesisRequest
	if !a.decode(w, r, &req) {
		return
	}

	request, err := a.manager.CheckGenesisHash(r.Context(), req.URL)
	a.writeResolved(w, r, request, err)
}

func (a *API) setAppState(w http.ResponseWriter, r *http.Request) {
	var req appStateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Active == nil {
		a.writeJSON(w, http.StatusBadRequest, errors.New(errors.GenericErrorCode, "active is required"))
		return
	}

	a.logger.Info("app state changed", zap.Bool("active", *req.Active))
	a.appState.SetAppActive(*req.Active)
	a.writeJSON(w, http.StatusOK, appStateResponse{Active: *req.Active})
}

func (a *API) nodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := a.registry.Nodes()
	if err != nil {
		a.writeError(w, err)
		return
	}
	if nodes == nil {
		nodes = []node.Node{}
	}
	a.writeJSON(w, http.StatusOK, nodes)
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	status, err := a.manager.Status(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, status)
}

func (a *API) healthStatus(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: a.health.Status(), Nodes: a.health.GetStatuses()}
	code := http.StatusOK
	if resp.Status.Status == rpcstatus.StatusDown {
		code = http.StatusServiceUnavailable
	}
	a.writeJSON(w, code, resp)
}

func (a *API) writeResolved(w http.ResponseWriter, r *http.Request, request *nodemanager.Request, err error) {
	if err != nil {
		a.writeError(w, err)
		return
	}

	ev, err := request.Wait(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}

	signalType, payload := ev.Signal()
	a.writeJSON(w, http.StatusOK, signal.NewEnvelope(string(signalType), payload))
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errors.New(errors.GenericErrorCode, err.Error()))
		return false
	}
	return true
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	resp := errors.CreateErrorResponseFromError(err)
	code := statusCode(resp)
	if code == http.StatusInternalServerError {
		a.logger.Error("request failed", zap.Error(err))
	}
	a.writeJSON(w, code, resp)
}

func (a *API) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (a *API) post(handler http.HandlerFunc) http.HandlerFunc {
	return a.method(http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
		if a.limiter != nil && !a.limiter.Allow() {
			a.writeError(w, errors.New(errors.RateLimitedCode, "too many requests"))
			return
		}
		handler(w, r)
	})
}

func (a *API) get(handler http.HandlerFunc) http.HandlerFunc {
	return a.method(http.MethodGet, handler)
}

func (a *API) method(method string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			a.writeJSON(w, http.StatusMethodNotAllowed, errors.New(errors.GenericErrorCode, "method not allowed"))
			return
		}
		handler(w, r)
	}
}

func statusCode(err error) int {
	var resp *errors.ErrorResponse
	if !stderrors.As(err, &resp) {
		return http.StatusInternalServerError
	}
	switch resp.Code {
	case errors.BusyErrorCode:
		return http.StatusConflict
	case errors.StoppedErrorCode:
		return http.StatusServiceUnavailable
	case errors.InvalidURLErrorCode:
		return http.StatusBadRequest
	case errors.UnknownNodeCode:
		return http.StatusNotFound
	case errors.RateLimitedCode:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
