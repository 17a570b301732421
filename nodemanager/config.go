package nodemanager

import (
	"time"

	"github.com/status-im/nodemanager/params"
)

type Config struct {
	// DefaultNodeURL seeds the transport when no node was ever selected.
	DefaultNodeURL string
	// ExpectedGenesisHash is compared with the genesis hash of custom nodes.
	ExpectedGenesisHash string
	// TrustedEnvironment accepts any genesis hash.
	TrustedEnvironment bool
	AutoSwitch         bool
	// SwitchAttemptStep is the number of reconnect attempts a node gets
	// before failover moves on.
	SwitchAttemptStep int
	// ProbeTimeout bounds the genesis hash read.
	ProbeTimeout time.Duration
	// SwitchTimeout fails a pending switch or probe, 0 waits forever.
	SwitchTimeout time.Duration
}

// ConfigFromParams extracts the manager settings of a node manager config.
func ConfigFromParams(c *params.NodeManagerConfig) Config {
	return Config{
		DefaultNodeURL:      c.DefaultNodeURL,
		ExpectedGenesisHash: c.ExpectedGenesisHash,
		TrustedEnvironment:  c.BuildFlavor.Trusted(),
		AutoSwitch:          c.AutoSwitch,
		SwitchAttemptStep:   c.SwitchAttemptStep,
		ProbeTimeout:        c.ProbeTimeout.Std(),
		SwitchTimeout:       c.SwitchTimeout.Std(),
	}
}

func (c Config) withDefaults() Config {
	if c.SwitchAttemptStep <= 0 {
		c.SwitchAttemptStep = params.DefaultSwitchAttemptStep
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = params.DefaultProbeTimeout
	}
	return c
}
