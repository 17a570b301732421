package params

import "errors"

// BuildFlavor identifies the kind of build the node manager runs in.
type BuildFlavor string

// Define available build flavors.
const (
	FlavorProduction  BuildFlavor = "production"
	FlavorDevelopment BuildFlavor = "development"
	FlavorTesting     BuildFlavor = "testing"
	FlavorSoralution  BuildFlavor = "soralution"
)

// Trusted reports whether the flavor runs against internal test networks,
// where custom nodes are accepted without a genesis hash match.
func (f BuildFlavor) Trusted() bool {
	return f != FlavorProduction
}

// Valid reports whether f is a known flavor.
func (f BuildFlavor) Valid() bool {
	switch f {
	case FlavorProduction, FlavorDevelopment, FlavorTesting, FlavorSoralution:
		return true
	}
	return false
}

// NodeConfig is a single catalog entry.
type NodeConfig struct {
	Address string `json:"address" validate:"required"`
	Name    string `json:"name" validate:"required"`
}

// Cluster defines the default RPC nodes and chain identity of a flavor.
type Cluster struct {
	GenesisHash string       `json:"genesisHash"`
	Nodes       []NodeConfig `json:"nodes"`
}

// ErrUnknownFlavor is returned when no cluster is defined for a flavor.
var ErrUnknownFlavor = errors.New("unknown build flavor")

var clusters = map[BuildFlavor]Cluster{
	FlavorProduction: {
		GenesisHash: "0x7e4e32d0feafd4f9c9414b0be86373f9a1efa904809b683453a9af6856d38ad5",
		Nodes: []NodeConfig{
			{Address: "wss://ws.mof.sora.org", Name: "SORA Parliament Ministry of Finance"},
			{Address: "wss://mof2.sora.org", Name: "SORA Parliament Ministry of Finance #2"},
			{Address: "wss://mof3.sora.org", Name: "SORA Parliament Ministry of Finance #3"},
			{Address: "wss://sora.api.onfinality.io/public-ws", Name: "OnFinality"},
		},
	},
	FlavorDevelopment: {
		GenesisHash: "0x3a5e6dd9ebf2dd2e2b5f8d4ae4b4e11e4c2ab8d1c46a4b3ef3b73f2b3d8c0f41",
		Nodes: []NodeConfig{
			{Address: "wss://ws.framenode-1.r0.dev.sora2.soramitsu.co.jp", Name: "Dev framenode 1"},
			{Address: "wss://ws.framenode-2.r0.dev.sora2.soramitsu.co.jp", Name: "Dev framenode 2"},
		},
	},
	FlavorTesting: {
		GenesisHash: "0x9d1ee1c9b3b2a8bbd27f2c3f6c24a4c6d8ad9f2b6f0d1d7e3a3d4c5b6a7f8e90",
		Nodes: []NodeConfig{
			{Address: "wss://ws.framenode-1.s1.tst.sora2.soramitsu.co.jp", Name: "Test framenode 1"},
			{Address: "wss://ws.framenode-2.s1.tst.sora2.soramitsu.co.jp", Name: "Test framenode 2"},
		},
	},
	FlavorSoralution: {
		GenesisHash: "0x5f8a9e2c1d0b7a6f4e3d2c1b0a9f8e7d6c5b4a3f2e1d0c9b8a7f6e5d4c3b2a19",
		Nodes: []NodeConfig{
			{Address: "wss://ws.framenode-1.s1.stg1.sora2.soramitsu.co.jp", Name: "Soralution framenode 1"},
		},
	},
}

// ClusterForFlavor returns the default cluster of a build flavor.
func ClusterForFlavor(flavor BuildFlavor) (Cluster, error) {
	c, ok := clusters[flavor]
	if !ok {
		return Cluster{}, ErrUnknownFlavor
	}
	return c, nil
}
