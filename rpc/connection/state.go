package connection

import "fmt"

// StateType is the lifecycle phase of the physical RPC connection.
type StateType int

const (
	// StateDisconnected means no url is targeted or the app is inactive.
	StateDisconnected StateType = iota
	// StateConnecting is a dial in progress.
	StateConnecting
	// StateConnected means the socket is open and answered a ping.
	StateConnected
	// StateWaitingForReconnect is the pause between two failed attempts.
	StateWaitingForReconnect
)

func (t StateType) String() string {
	switch t {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateWaitingForReconnect:
		return "WaitingForReconnect"
	default:
		return fmt.Sprintf("StateType(%d)", int(t))
	}
}

// State is one observed transition of the connection.
// URL is set for every type except StateDisconnected, Attempt only for
// StateWaitingForReconnect, where it counts consecutive failures on URL
// starting at 1.
type State struct {
	Type    StateType `json:"type"`
	URL     string    `json:"url,omitempty"`
	Attempt int       `json:"attempt,omitempty"`
}

func Disconnected() State {
	return State{Type: StateDisconnected}
}

func Connecting(url string) State {
	return State{Type: StateConnecting, URL: url}
}

func Connected(url string) State {
	return State{Type: StateConnected, URL: url}
}

func WaitingForReconnect(url string, attempt int) State {
	return State{Type: StateWaitingForReconnect, URL: url, Attempt: attempt}
}

// IsConnected reports whether s is Connected to any url.
func (s State) IsConnected() bool {
	return s.Type == StateConnected
}

func (s State) String() string {
	switch s.Type {
	case StateDisconnected:
		return s.Type.String()
	case StateWaitingForReconnect:
		return fmt.Sprintf("%s(%s, %d)", s.Type, s.URL, s.Attempt)
	default:
		return fmt.Sprintf("%s(%s)", s.Type, s.URL)
	}
}

// GoString prints a prettier state
func (s State) GoString() string {
	return fmt.Sprintf("connection.State{%s}", s.String())
}
