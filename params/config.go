package params

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	validator "gopkg.in/go-playground/validator.v9"

	"github.com/status-im/nodemanager/logutils"
)

const (
	// DefaultSwitchAttemptStep is how many reconnect attempts a node gets
	// before the failover supervisor moves to the next one.
	DefaultSwitchAttemptStep = 4

	// DefaultProbeTimeout bounds the genesis hash read on a candidate node.
	DefaultProbeTimeout = 10 * time.Second

	// DefaultDatabaseFilename is the name of the app database inside DataDir.
	DefaultDatabaseFilename = "nodes.db"

	// DefaultKDFIterationsNumber matches the reduced sqlcipher kdf iterations.
	DefaultKDFIterationsNumber = 3200
)

// Duration is a time.Duration that is encoded in JSON as a Go duration string.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts both "10s" strings and plain nanosecond numbers.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*d = Duration(time.Duration(v))
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(data))
	}
	return nil
}

// Std returns d as time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ----------
// TransportConfig
// ----------

// TransportConfig holds websocket transport settings.
type TransportConfig struct {
	// DialTimeout bounds a single connection attempt.
	DialTimeout Duration `json:"dialTimeout" validate:"gt=0"`

	// PingInterval is how often a connected socket is checked for liveness.
	PingInterval Duration `json:"pingInterval" validate:"gt=0"`

	// PingMethod is the RPC method used for the liveness check.
	PingMethod string `json:"pingMethod" validate:"required"`

	// MinReconnectDelay and MaxReconnectDelay bound the reconnect backoff.
	MinReconnectDelay Duration `json:"minReconnectDelay" validate:"gt=0"`
	MaxReconnectDelay Duration `json:"maxReconnectDelay" validate:"gt=0"`
}

// Validate validates the TransportConfig struct and returns an error if inconsistent values are found
func (c *TransportConfig) Validate(validate *validator.Validate) error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.MinReconnectDelay > c.MaxReconnectDelay {
		return fmt.Errorf("TransportConfig.MinReconnectDelay (%s) is greater than MaxReconnectDelay (%s)",
			c.MinReconnectDelay.Std(), c.MaxReconnectDelay.Std())
	}
	return nil
}

// ----------
// NodeManagerConfig
// ----------

// NodeManagerConfig is the top level configuration.
type NodeManagerConfig struct {
	// DataDir is the folder holding the app database and log files.
	DataDir string `json:"dataDir" validate:"required"`

	// DatabasePassword encrypts the app database.
	DatabasePassword string `json:"databasePassword"`

	// KDFIterationsNumber is passed to sqlcipher.
	KDFIterationsNumber int `json:"kdfIterationsNumber" validate:"gte=0"`

	BuildFlavor BuildFlavor `json:"buildFlavor" validate:"required"`

	// DefaultNodeURL is used when no node was ever selected.
	DefaultNodeURL string `json:"defaultNodeUrl" validate:"required"`

	// ExpectedGenesisHash identifies the chain custom nodes must serve.
	ExpectedGenesisHash string `json:"expectedGenesisHash" validate:"required"`

	// AutoSwitch enables the failover supervisor.
	AutoSwitch bool `json:"autoSwitch"`

	SwitchAttemptStep int `json:"switchAttemptStep" validate:"gt=0"`

	ProbeTimeout Duration `json:"probeTimeout" validate:"gt=0"`

	// SwitchTimeout resolves a pending switch or probe as failed, 0 disables it.
	SwitchTimeout Duration `json:"switchTimeout" validate:"gte=0"`

	Transport TransportConfig `json:"transport"`

	// DefaultNodesURLs are catalog sources, tried in order.
	DefaultNodesURLs []string `json:"defaultNodesUrls"`

	DefaultNodesCacheTTL Duration `json:"defaultNodesCacheTtl" validate:"gte=0"`

	// Nodes seeds an empty registry.
	Nodes []NodeConfig `json:"nodes" validate:"dive"`

	LogSettings logutils.LogSettings `json:"logSettings"`

	// MetricsPort enables the metrics server when non-zero.
	MetricsPort int `json:"metricsPort" validate:"gte=0,lte=65535"`

	// SignalsAddress is where the signals server listens, empty disables it.
	SignalsAddress string `json:"signalsAddress"`

	// APIRequestsPerSecond throttles connect and check-genesis calls on the
	// HTTP API, 0 disables the limit.
	APIRequestsPerSecond float64 `json:"apiRequestsPerSecond" validate:"gte=0"`
}

// NewNodeManagerConfig creates new config object with defaults for the given flavor.
func NewNodeManagerConfig(dataDir string, flavor BuildFlavor) (*NodeManagerConfig, error) {
	cluster, err := ClusterForFlavor(flavor)
	if err != nil {
		return nil, err
	}
	if len(cluster.Nodes) == 0 {
		return nil, fmt.Errorf("no default nodes for flavor %s", flavor)
	}

	config := &NodeManagerConfig{
		DataDir:              dataDir,
		KDFIterationsNumber:  DefaultKDFIterationsNumber,
		BuildFlavor:          flavor,
		DefaultNodeURL:       cluster.Nodes[0].Address,
		ExpectedGenesisHash:  cluster.GenesisHash,
		AutoSwitch:           true,
		SwitchAttemptStep:    DefaultSwitchAttemptStep,
		ProbeTimeout:         Duration(DefaultProbeTimeout),
		DefaultNodesCacheTTL: Duration(10 * time.Minute),
		Nodes:                append([]NodeConfig(nil), cluster.Nodes...),
		Transport: TransportConfig{
			DialTimeout:       Duration(10 * time.Second),
			PingInterval:      Duration(15 * time.Second),
			PingMethod:        "system_health",
			MinReconnectDelay: Duration(500 * time.Millisecond),
			MaxReconnectDelay: Duration(30 * time.Second),
		},
		LogSettings: logutils.LogSettings{
			Enabled:    true,
			Level:      "INFO",
			MaxSize:    100,
			MaxBackups: 3,
		},
	}

	return config, nil
}

// NewConfigFromJSON parses incoming JSON over the flavor defaults and returns it as config.
// The flavor is read from the JSON first so that defaults match it.
func NewConfigFromJSON(configJSON string) (*NodeManagerConfig, error) {
	var head struct {
		DataDir     string      `json:"dataDir"`
		BuildFlavor BuildFlavor `json:"buildFlavor"`
	}
	if err := json.Unmarshal([]byte(configJSON), &head); err != nil {
		return nil, err
	}
	if head.BuildFlavor == "" {
		head.BuildFlavor = FlavorProduction
	}

	config, err := NewNodeManagerConfig(head.DataDir, head.BuildFlavor)
	if err != nil {
		return nil, err
	}

	if err := loadConfigFromJSON(configJSON, config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadConfigFromFile reads a JSON config file.
func LoadConfigFromFile(path string) (*NodeManagerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfigFromJSON(string(data))
}

func loadConfigFromJSON(configJSON string, config *NodeManagerConfig) error {
	// json reuses existing slice elements, so lists given in the input
	// must not start from the flavor defaults
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(configJSON), &keys); err != nil {
		return err
	}
	if _, ok := keys["nodes"]; ok {
		config.Nodes = nil
	}
	if _, ok := keys["defaultNodesUrls"]; ok {
		config.DefaultNodesURLs = nil
	}

	decoder := json.NewDecoder(strings.NewReader(configJSON))
	decoder.DisallowUnknownFields()
	// override default configuration with values by JSON input
	return decoder.Decode(config)
}

// NewValidator returns a validator for config structs.
func NewValidator() *validator.Validate {
	return validator.New()
}

// Validate checks if NodeManagerConfig fields have valid values.
//
// It returns nil if there are no errors, otherwise the first error is returned.
// A struct tag error has the following format:
//
//	Key: 'NodeManagerConfig.DataDir' Error:Field validation for 'DataDir' failed on the 'required' tag
func (c *NodeManagerConfig) Validate() error {
	validate := NewValidator()

	if err := validate.Struct(c); err != nil {
		return err
	}

	if !c.BuildFlavor.Valid() {
		return fmt.Errorf("BuildFlavor '%s' is invalid", c.BuildFlavor)
	}

	if err := validateURL("DefaultNodeURL", c.DefaultNodeURL); err != nil {
		return err
	}

	for _, u := range c.DefaultNodesURLs {
		if err := validateURL("DefaultNodesURLs", u); err != nil {
			return err
		}
	}

	for _, n := range c.Nodes {
		if err := validateURL("Nodes.Address", n.Address); err != nil {
			return err
		}
	}

	if err := c.Transport.Validate(validate); err != nil {
		return err
	}

	if c.LogSettings.Enabled && c.LogSettings.File != "" && !filepath.IsAbs(c.LogSettings.File) && c.DataDir == "" {
		return fmt.Errorf("LogSettings.File is relative but DataDir is empty")
	}

	return nil
}

// DatabasePath returns the app database location.
func (c *NodeManagerConfig) DatabasePath() string {
	return filepath.Join(c.DataDir, DefaultDatabaseFilename)
}

// LogFilePath resolves the log file against DataDir.
func (c *NodeManagerConfig) LogFilePath() string {
	if c.LogSettings.File == "" || filepath.IsAbs(c.LogSettings.File) {
		return c.LogSettings.File
	}
	return filepath.Join(c.DataDir, c.LogSettings.File)
}

func validateURL(field, value string) error {
	if _, err := url.ParseRequestURI(value); err != nil {
		return fmt.Errorf("%s '%s' is invalid: %v", field, value, err.Error())
	}
	return nil
}
