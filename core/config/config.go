package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/AvaProtocol/ap-oracle/pkg/retry"
)

const MnemonicEnvVar = "NODE_MNEMONIC"

const (
	DefaultPollInterval      = 60 * time.Second
	DefaultBlockHistoryLimit = 300
	DefaultBatchAttempts     = 2
	DefaultBatchTimeout      = 4 * time.Second
	DefaultSubmissionTimeout = 4 * time.Second
	DefaultApiCallTimeout    = 20 * time.Second
	DefaultFulfillGasLimit   = 500_000
	DefaultRpcRateLimit      = 20
	DefaultNodeApiAddress    = "0.0.0.0:8080"
	DefaultDbPath            = "/tmp/ap-oracle/db"
)

var ErrMissingMnemonic = errors.New(MnemonicEnvVar + " is not set")

// NodeConfig is read from the yaml file given to run-node. The mnemonic never
// lives in the file, it comes from the environment.
type NodeConfig struct {
	// used to set the logger level (true = info, false = debug)
	Production           bool             `yaml:"production"`
	DbPath               string           `yaml:"db_path" validate:"required"`
	NodeApiIpPortAddress string           `yaml:"node_api_ip_port_address" validate:"required,hostname_port"`
	EnableMetrics        bool             `yaml:"enable_metrics"`
	PollInterval         time.Duration    `yaml:"poll_interval" validate:"gt=0"`
	Chains               []ChainConfig    `yaml:"chains" validate:"required,min=1,dive"`
	Timeouts             Timeouts         `yaml:"timeouts"`
	Endpoints            []EndpointConfig `yaml:"endpoints" validate:"dive"`

	Mnemonic string `yaml:"-"`
}

type ChainConfig struct {
	ID                string  `yaml:"id" validate:"required,number"`
	Name              string  `yaml:"name"`
	RpcURL            string  `yaml:"rpc_url" validate:"required,url"`
	ContractAddress   string  `yaml:"contract_address" validate:"required,eth_addr"`
	ProviderID        string  `yaml:"provider_id" validate:"omitempty,bytes32"`
	BlockHistoryLimit uint64  `yaml:"block_history_limit"`
	RpcRateLimit      float64 `yaml:"rpc_rate_limit" validate:"gte=0"`
	FulfillGasLimit   uint64  `yaml:"fulfill_gas_limit"`
}

type Timeouts struct {
	BatchAttempts     int           `yaml:"batch_attempts" validate:"gte=1"`
	BatchTimeout      time.Duration `yaml:"batch_timeout" validate:"gt=0"`
	SubmissionTimeout time.Duration `yaml:"submission_timeout" validate:"gt=0"`
	ApiCallTimeout    time.Duration `yaml:"api_call_timeout" validate:"gt=0"`
}

// EndpointConfig describes how to reach the off-chain API behind an endpoint id.
type EndpointConfig struct {
	ID         string            `yaml:"id" validate:"required,bytes32"`
	Name       string            `yaml:"name"`
	URL        string            `yaml:"url" validate:"required,url"`
	Method     string            `yaml:"method" validate:"omitempty,oneof=GET POST get post"`
	Headers    map[string]string `yaml:"headers"`
	Parameters map[string]string `yaml:"parameters"`
}

// Load reads the yaml config, fills the defaults, picks the mnemonic up from
// the environment (or a .env file next to the process) and validates the
// result.
func Load(path string) (*NodeConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	c := &NodeConfig{}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	c.Mnemonic = LoadMnemonic()
	c.ApplyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadMnemonic reads NODE_MNEMONIC, loading .env first when present. Values
// already set in the environment win over the file.
func LoadMnemonic() string {
	_ = godotenv.Load()
	return strings.TrimSpace(os.Getenv(MnemonicEnvVar))
}

func (c *NodeConfig) ApplyDefaults() {
	if c.DbPath == "" {
		c.DbPath = DefaultDbPath
	}
	if c.NodeApiIpPortAddress == "" {
		c.NodeApiIpPortAddress = DefaultNodeApiAddress
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Timeouts.BatchAttempts == 0 {
		c.Timeouts.BatchAttempts = DefaultBatchAttempts
	}
	if c.Timeouts.BatchTimeout == 0 {
		c.Timeouts.BatchTimeout = DefaultBatchTimeout
	}
	if c.Timeouts.SubmissionTimeout == 0 {
		c.Timeouts.SubmissionTimeout = DefaultSubmissionTimeout
	}
	if c.Timeouts.ApiCallTimeout == 0 {
		c.Timeouts.ApiCallTimeout = DefaultApiCallTimeout
	}
	for i := range c.Chains {
		chain := &c.Chains[i]
		if chain.BlockHistoryLimit == 0 {
			chain.BlockHistoryLimit = DefaultBlockHistoryLimit
		}
		if chain.FulfillGasLimit == 0 {
			chain.FulfillGasLimit = DefaultFulfillGasLimit
		}
		if chain.RpcRateLimit == 0 {
			chain.RpcRateLimit = DefaultRpcRateLimit
		}
		if chain.Name == "" {
			chain.Name = "chain-" + chain.ID
		}
	}
}

func (c *NodeConfig) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := map[string]bool{}
	for _, chain := range c.Chains {
		if seen[chain.ID] {
			return fmt.Errorf("invalid config: chain %s is configured twice", chain.ID)
		}
		seen[chain.ID] = true
	}
	return nil
}

// RequireMnemonic is checked by the commands that sign or derive keys.
func (c *NodeConfig) RequireMnemonic() error {
	if c.Mnemonic == "" {
		return ErrMissingMnemonic
	}
	return nil
}

func (c *NodeConfig) Chain(id string) (ChainConfig, bool) {
	for _, chain := range c.Chains {
		if chain.ID == id {
			return chain, true
		}
	}
	return ChainConfig{}, false
}

// BatchRetry is the retry policy of every batched contract read.
func (t Timeouts) BatchRetry() retry.Options {
	return retry.Simple(t.BatchAttempts, t.BatchTimeout)
}

func (c ChainConfig) ChainID() *big.Int {
	id, _ := new(big.Int).SetString(c.ID, 10)
	return id
}

func (c ChainConfig) Contract() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

// ProviderHash returns the configured provider id, or false when the node
// should derive it from its own key.
func (c ChainConfig) ProviderHash() (common.Hash, bool) {
	if c.ProviderID == "" {
		return common.Hash{}, false
	}
	return common.HexToHash(c.ProviderID), true
}

func (e EndpointConfig) EndpointID() common.Hash {
	return common.HexToHash(e.ID)
}
