package signal

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/status-im/nodemanager/logutils"
)

// MobileSignalHandler receives every signal as a JSON encoded Envelope.
type MobileSignalHandler func([]byte)

// Envelope is a general signal sent upward from the node manager.
type Envelope struct {
	Type  string      `json:"type"`
	Event interface{} `json:"event"`
}

// NewEnvelope creates new envelope of given type and event payload.
func NewEnvelope(typ string, event interface{}) *Envelope {
	return &Envelope{
		Type:  typ,
		Event: event,
	}
}

var (
	mobileSignalHandler MobileSignalHandler
	handlerMu           sync.RWMutex
)

// SetMobileSignalHandler sets the handler invoked on every signal.
func SetMobileSignalHandler(handler MobileSignalHandler) {
	handlerMu.Lock()
	defer handlerMu.Unlock()
	mobileSignalHandler = handler
}

// ResetMobileSignalHandler removes the handler, signals are dropped afterwards.
func ResetMobileSignalHandler() {
	SetMobileSignalHandler(nil)
}

// send marshals the event into an envelope and hands it to the handler.
func send(typ string, event interface{}) {
	handlerMu.RLock()
	handler := mobileSignalHandler
	handlerMu.RUnlock()
	if handler == nil {
		return
	}

	data, err := json.Marshal(NewEnvelope(typ, event))
	if err != nil {
		logutils.ZapLogger().Error("marshalling signal envelope", zap.String("type", typ), zap.Error(err))
		return
	}
	handler(data)
}
