package node

import "strings"

// Node is a named RPC endpoint the wallet can connect to.
// Identity is the address, compared with SameAddress.
type Node struct {
	Address    string `json:"address"`
	Name       string `json:"name"`
	IsSelected bool   `json:"isSelected"`
}

// SameAddress reports whether two node addresses refer to the same endpoint.
// Two addresses are equal if they are identical, or if one of them equals
// the other with exactly one trailing slash appended.
func SameAddress(a, b string) bool {
	if a == b {
		return true
	}
	return a+"/" == b || b+"/" == a
}

// Is reports whether n is registered under address.
func (n Node) Is(address string) bool {
	return SameAddress(n.Address, address)
}

// IndexOf returns the position of the node with the given address, or -1.
func IndexOf(nodes []Node, address string) int {
	for i, n := range nodes {
		if n.Is(address) {
			return i
		}
	}
	return -1
}

// FindByAddress returns the node registered under address.
func FindByAddress(nodes []Node, address string) (Node, bool) {
	idx := IndexOf(nodes, address)
	if idx < 0 {
		return Node{}, false
	}
	return nodes[idx], true
}

// ValidAddress checks that address looks like a websocket or http RPC endpoint.
func ValidAddress(address string) bool {
	for _, scheme := range []string{"ws://", "wss://", "http://", "https://"} {
		if strings.HasPrefix(address, scheme) && len(address) > len(scheme) {
			return true
		}
	}
	return false
}
