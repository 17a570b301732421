package provider_errors

import (
	"errors"

	"github.com/ethereum/go-ethereum/rpc"
)

type RpcProviderErrorType string

const (
	RpcErrorTypeNone           RpcProviderErrorType = "none"
	RpcErrorTypeMethodNotFound RpcProviderErrorType = "rpc_method_not_found"
	RpcErrorTypeRPCOther       RpcProviderErrorType = "rpc_other"
	RpcErrorTypeTransport      RpcProviderErrorType = "transport"
)

// ErrNodeUnreachable marks a node that could not be dialed or stopped answering.
var ErrNodeUnreachable = errors.New("rpc node unreachable")

func IsRPCError(err error) (rpc.Error, bool) {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}

func IsMethodNotFoundError(err error) bool {
	if rpcErr, ok := IsRPCError(err); ok {
		return rpcErr.ErrorCode() == -32601
	}
	return false
}

// DetermineRpcErrorType classifies err.
func DetermineRpcErrorType(err error) RpcProviderErrorType {
	if err == nil {
		return RpcErrorTypeNone
	}
	if IsMethodNotFoundError(err) {
		return RpcErrorTypeMethodNotFound
	}
	if _, ok := IsRPCError(err); ok {
		return RpcErrorTypeRPCOther
	}
	return RpcErrorTypeTransport
}

// IsNonCriticalRpcError reports whether the node answered, even with an error.
func IsNonCriticalRpcError(err error) bool {
	return DetermineRpcErrorType(err) != RpcErrorTypeTransport
}
