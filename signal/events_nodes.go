package signal

type SignalType string

const (
	NodesConnected        = SignalType("nodes.connected")
	NodesConnectionFailed = SignalType("nodes.connection-failed")
	NodesNoConnection     = SignalType("nodes.no-connection")
	NodesNodeExisting     = SignalType("nodes.node-existing")
	NodesGenesisValidated = SignalType("nodes.genesis-validated")
	NodesAllUnavailable   = SignalType("nodes.all-unavailable")
)

// NodeSignal is sent for requests without a payload of their own.
type NodeSignal struct {
	RequestID string `json:"requestId,omitempty"`
}

// NodeConnectionSignal is sent when a requested switch succeeds or fails.
type NodeConnectionSignal struct {
	Address   string `json:"address"`
	RequestID string `json:"requestId,omitempty"`
}

// NodeExistingSignal is sent when a custom node is already registered.
type NodeExistingSignal struct {
	ExistedNodeName string `json:"existedNodeName"`
	CurrentNodeURL  string `json:"currentNodeUrl"`
	RequestID       string `json:"requestId,omitempty"`
}

// GenesisValidatedSignal carries the outcome of a custom node check.
type GenesisValidatedSignal struct {
	Result    bool   `json:"result"`
	RequestID string `json:"requestId,omitempty"`
}

// SendNodesEvent sends a node manager event.
func SendNodesEvent(signalType SignalType, event interface{}) {
	send(string(signalType), event)
}
