package nodemanager

import (
	"context"

	"github.com/ethereum/go-ethereum/event"

	"github.com/status-im/nodemanager/rpc/connection"
	"github.com/status-im/nodemanager/rpc/node"
)

//go:generate mockgen -package=mock_nodemanager -destination=mock/interfaces.go -source=interfaces.go

// Transport is the connection the manager steers. It is implemented by
// connection.Transport.
type Transport interface {
	SetAddress(url string)
	SwitchURL(url string)
	URL() string
	State() connection.State
	SubscribeStates(ch chan<- connection.State) event.Subscription
}

// Registry is the node catalog and selection. It is implemented by network.Manager.
type Registry interface {
	Nodes() ([]node.Node, error)
	SelectedNode() (*node.Node, error)
	SelectNode(n node.Node) error
	LastSelectedAddress() (string, error)
	BlockHash(ctx context.Context) (string, error)
	Subscribe() chan struct{}
	Unsubscribe(ch chan struct{})
}
