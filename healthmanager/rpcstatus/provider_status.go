package rpcstatus

import (
	"time"

	"github.com/status-im/nodemanager/healthmanager/provider_errors"
)

// StatusType represents the possible status values for a node.
type StatusType string

const (
	StatusUnknown StatusType = "unknown"
	StatusUp      StatusType = "up"
	StatusDown    StatusType = "down"
)

// ProviderStatus holds the status information for a single RPC node.
type ProviderStatus struct {
	Name          string     `json:"name"`
	LastSuccessAt time.Time  `json:"last_success_at"`
	LastErrorAt   time.Time  `json:"last_error_at"`
	LastError     string     `json:"last_error,omitempty"`
	Attempt       int        `json:"attempt"`
	Status        StatusType `json:"status"`
}

// RpcProviderCallStatus represents the result of reaching an RPC node.
type RpcProviderCallStatus struct {
	Name      string
	Timestamp time.Time
	Attempt   int
	Err       error
}

// NewRpcProviderStatus processes RpcProviderCallStatus and returns a new ProviderStatus.
func NewRpcProviderStatus(res RpcProviderCallStatus) ProviderStatus {
	status := ProviderStatus{
		Name:    res.Name,
		Attempt: res.Attempt,
	}

	// A node that answered with a JSON-RPC error is still reachable
	if provider_errors.IsNonCriticalRpcError(res.Err) {
		status.LastSuccessAt = res.Timestamp
		status.Status = StatusUp
	} else {
		status.LastErrorAt = res.Timestamp
		status.LastError = res.Err.Error()
		status.Status = StatusDown
	}

	return status
}
