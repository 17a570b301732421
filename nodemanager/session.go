package nodemanager

import (
	"context"
	"time"

	"github.com/status-im/nodemanager/rpc/node"
)

type sessionKind int

const (
	manualSwitch sessionKind = iota
	genesisProbe
)

func (k sessionKind) String() string {
	if k == genesisProbe {
		return "genesis-probe"
	}
	return "manual-switch"
}

type probePhase int

const (
	probeConnecting probePhase = iota
	probeReading
)

// session is the single request in flight. For a genesis probe target.Address
// is the custom node url.
type session struct {
	id       uint64
	kind     sessionKind
	target   node.Node
	revertTo string
	request  *Request

	phase      probePhase
	cancelRead context.CancelFunc
	timer      *time.Timer
}

// matches is the stale-event guard: only transitions for the session's own
// target may resolve it.
func (s *session) matches(url string) bool {
	return url != "" && node.SameAddress(s.target.Address, url)
}

func (s *session) stop() {
	if s.cancelRead != nil {
		s.cancelRead()
	}
	if s.timer != nil {
		s.timer.Stop()
	}
}

type probeResult struct {
	sessionID uint64
	hash      string
	err       error
}
