package nodemanager

import (
	"github.com/status-im/nodemanager/signal"
)

// Signal maps e to its signal type and payload.
func (e Event) Signal() (signal.SignalType, interface{}) {
	switch e.Type {
	case EventConnected:
		return signal.NodesConnected, signal.NodeConnectionSignal{Address: e.Address, RequestID: e.RequestID}
	case EventConnectionFailed:
		return signal.NodesConnectionFailed, signal.NodeConnectionSignal{Address: e.Address, RequestID: e.RequestID}
	case EventNodeExisting:
		return signal.NodesNodeExisting, signal.NodeExistingSignal{
			ExistedNodeName: e.ExistedNodeName,
			CurrentNodeURL:  e.CurrentNodeURL,
			RequestID:       e.RequestID,
		}
	case EventGenesisValidated:
		return signal.NodesGenesisValidated, signal.GenesisValidatedSignal{Result: e.Result, RequestID: e.RequestID}
	case EventAllNodesUnavailable:
		return signal.NodesAllUnavailable, signal.NodeSignal{}
	default:
		return signal.NodesNoConnection, signal.NodeSignal{RequestID: e.RequestID}
	}
}

func sendSignal(e Event) {
	signalType, payload := e.Signal()
	signal.SendNodesEvent(signalType, payload)
}
