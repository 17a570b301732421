package nodemanager

import (
	"github.com/status-im/nodemanager/errors"
)

var (
	// ErrBusy is returned while a manual switch or a genesis probe is in flight.
	ErrBusy = errors.New(errors.BusyErrorCode, "a node switch or genesis check is already in progress")
	// ErrStopped is returned by requests made before Start or after Stop.
	ErrStopped = errors.New(errors.StoppedErrorCode, "node manager is not running")
	// ErrInvalidURL is returned for addresses that are not ws, wss, http or https urls.
	ErrInvalidURL = errors.New(errors.InvalidURLErrorCode, "node address is not a valid rpc url")
)
