package nodemanager

import (
	"encoding/json"
	"fmt"
)

// EventType identifies a NodeManager event.
type EventType string

const (
	// EventNoConnection is emitted when a request needs a live connection and there is none.
	EventNoConnection EventType = "no-connection"
	// EventConnected is emitted when a requested switch succeeded.
	EventConnected EventType = "connected"
	// EventConnectionFailed is emitted when a requested switch could not be established.
	EventConnectionFailed EventType = "connection-failed"
	// EventNodeExisting is emitted when a custom node is already registered.
	EventNodeExisting EventType = "node-existing"
	// EventGenesisValidated carries the outcome of a custom node probe.
	EventGenesisValidated EventType = "genesis-validated"
	// EventAllNodesUnavailable is emitted once per exhausted failover sweep.
	EventAllNodesUnavailable EventType = "all-nodes-unavailable"
)

// Event is a NodeManager event. Fields other than Type are set depending on it.
type Event struct {
	Type EventType `json:"type"`

	// Address is the node of Connected and ConnectionFailed.
	Address string `json:"address,omitempty"`

	// ExistedNodeName and CurrentNodeURL are set for NodeExisting.
	ExistedNodeName string `json:"existedNodeName,omitempty"`
	CurrentNodeURL  string `json:"currentNodeUrl,omitempty"`

	// Result is the GenesisValidated outcome. It is always encoded for that
	// type, false included, and never for the others.
	Result bool `json:"result"`

	// RequestID links the event to the Request that caused it.
	RequestID string `json:"requestId,omitempty"`
}

func NoConnection() Event {
	return Event{Type: EventNoConnection}
}

func Connected(address string) Event {
	return Event{Type: EventConnected, Address: address}
}

func ConnectionFailed(address string) Event {
	return Event{Type: EventConnectionFailed, Address: address}
}

func NodeExisting(existedNodeName, currentNodeURL string) Event {
	return Event{Type: EventNodeExisting, ExistedNodeName: existedNodeName, CurrentNodeURL: currentNodeURL}
}

func GenesisValidated(result bool) Event {
	return Event{Type: EventGenesisValidated, Result: result}
}

func AllNodesUnavailable() Event {
	return Event{Type: EventAllNodesUnavailable}
}

func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	out := struct {
		plain
		Result *bool `json:"result,omitempty"`
	}{plain: plain(e)}
	if e.Type == EventGenesisValidated {
		result := e.Result
		out.Result = &result
	}
	return json.Marshal(out)
}

func (e Event) String() string {
	switch e.Type {
	case EventConnected, EventConnectionFailed:
		return fmt.Sprintf("%s(%s)", e.Type, e.Address)
	case EventNodeExisting:
		return fmt.Sprintf("%s(%s, %s)", e.Type, e.ExistedNodeName, e.CurrentNodeURL)
	case EventGenesisValidated:
		return fmt.Sprintf("%s(%t)", e.Type, e.Result)
	default:
		return string(e.Type)
	}
}
