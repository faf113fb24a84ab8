// Package config loads the lottery CLI configuration from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	chainsel "github.com/smartcontractkit/chain-selectors"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/encrypted-lottery/lottery-deployments/chain/evm/provider/rpcclient"
)

// NetworkType selects the chain the CLI talks to.
type NetworkType string

const (
	// NetworkRPC connects to EVM nodes over RPC.
	NetworkRPC NetworkType = "rpc"
	// NetworkSimulated runs an in-process fhevm mock chain, deployed on start.
	NetworkSimulated NetworkType = "simulated"
)

// RPCConfig is a single EVM node endpoint.
type RPCConfig struct {
	Name               string `mapstructure:"name" yaml:"name"`
	WSURL              string `mapstructure:"ws_url" yaml:"ws_url"`
	HTTPURL            string `mapstructure:"http_url" yaml:"http_url"`
	PreferredURLScheme string `mapstructure:"preferred_url_scheme" yaml:"preferred_url_scheme"` // ws, http or none
}

// NetworkConfig selects and reaches the chain.
type NetworkConfig struct {
	Type          NetworkType `mapstructure:"type" yaml:"type"`
	ChainSelector uint64      `mapstructure:"chain_selector" yaml:"chain_selector"`
	RPCs          []RPCConfig `mapstructure:"rpcs" yaml:"rpcs"`
}

// KMSConfig is the configuration for the AWS KMS signer.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type KMSConfig struct {
	KeyID      string `mapstructure:"key_id" yaml:"key_id"`           // Secret: AWS KMS Key ID
	KeyRegion  string `mapstructure:"key_region" yaml:"key_region"`   // Secret: AWS KMS Key Region (e.g. us-west-1)
	AWSProfile string `mapstructure:"aws_profile" yaml:"aws_profile"` // Optional AWS profile name
}

// WalletConfig selects the signer of draws, deployments and decryption requests. One of the
// private key, the mnemonic or the KMS key must be set; they are tried in that order.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type WalletConfig struct {
	PrivateKey   string    `mapstructure:"private_key" yaml:"private_key"`     // Secret: hex private key
	Mnemonic     string    `mapstructure:"mnemonic" yaml:"mnemonic"`           // Secret: BIP39 mnemonic
	AccountIndex uint32    `mapstructure:"account_index" yaml:"account_index"` // BIP44 account index of the mnemonic
	KMS          KMSConfig `mapstructure:"kms" yaml:"kms"`
}

// TokenConfig is a confidential token the front end knows about. On simulated networks the
// address is assigned by the deployment and may be left empty to only override the title.
type TokenConfig struct {
	Key     string `mapstructure:"key" yaml:"key"`
	Title   string `mapstructure:"title" yaml:"title"`
	Address string `mapstructure:"address" yaml:"address"`
}

// LotteryConfig points at the deployed lottery.
type LotteryConfig struct {
	Address string        `mapstructure:"address" yaml:"address"`
	Tokens  []TokenConfig `mapstructure:"tokens" yaml:"tokens"`
}

// FHEConfig configures user decryption.
type FHEConfig struct {
	DecryptDurationDays int64 `mapstructure:"decrypt_duration_days" yaml:"decrypt_duration_days"`
}

// DatastoreConfig locates the address datastore.
type DatastoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// DeployConfig configures deployments on rpc networks.
type DeployConfig struct {
	// ArtifactsRoot is the hardhat project holding artifacts/contracts/<Name>.sol/<Name>.json.
	ArtifactsRoot string `mapstructure:"artifacts_root" yaml:"artifacts_root"`
}

// DrawLogConfig configures the draw log database.
//
// WARNING: The DSN usually carries credentials and should not be logged.
type DrawLogConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"` // Secret: postgres connection string
}

// LogConfig configures the runtime logger.
type LogConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	Console bool   `mapstructure:"console" yaml:"console"`
}

// Config wraps the entire configuration of the lottery CLI.
type Config struct {
	Network   NetworkConfig   `mapstructure:"network" yaml:"network"`
	Wallet    WalletConfig    `mapstructure:"wallet" yaml:"wallet"`
	Lottery   LotteryConfig   `mapstructure:"lottery" yaml:"lottery"`
	FHE       FHEConfig       `mapstructure:"fhe" yaml:"fhe"`
	Datastore DatastoreConfig `mapstructure:"datastore" yaml:"datastore"`
	Deploy    DeployConfig    `mapstructure:"deploy" yaml:"deploy"`
	DrawLog   DrawLogConfig   `mapstructure:"drawlog" yaml:"drawlog"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// Load loads the config from the file path, falling back to env vars if the file does not exist.
// If the file exists, any env vars that are set will override the values loaded from the file.
func Load(filePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filePath)
	setDefaults(v)

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

// LoadEnv loads the config from the environment variables.
func LoadEnv() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("network.type", string(NetworkSimulated))
	v.SetDefault("fhe.decrypt_duration_days", 10)
	v.SetDefault("log.level", "info")
}

var (
	// envBindings maps config keys to the environment variables that can set them. The first
	// name is preferred, the following ones are legacy names kept for existing setups.
	envBindings = map[string][]string{
		"network.type":              {"LOTTERY_NETWORK_TYPE"},
		"network.chain_selector":    {"LOTTERY_NETWORK_CHAIN_SELECTOR"},
		"wallet.private_key":        {"LOTTERY_WALLET_PRIVATE_KEY", "PRIVATE_KEY"},
		"wallet.mnemonic":           {"LOTTERY_WALLET_MNEMONIC", "MNEMONIC"},
		"wallet.account_index":      {"LOTTERY_WALLET_ACCOUNT_INDEX"},
		"wallet.kms.key_id":         {"LOTTERY_WALLET_KMS_KEY_ID", "KMS_DEPLOYER_KEY_ID"},
		"wallet.kms.key_region":     {"LOTTERY_WALLET_KMS_KEY_REGION", "KMS_DEPLOYER_KEY_REGION"},
		"wallet.kms.aws_profile":    {"LOTTERY_WALLET_KMS_AWS_PROFILE"},
		"lottery.address":           {"LOTTERY_ADDRESS", "TOKEN_LOTTERY_ADDRESS"},
		"fhe.decrypt_duration_days": {"LOTTERY_FHE_DECRYPT_DURATION_DAYS"},
		"datastore.path":            {"LOTTERY_DATASTORE_PATH"},
		"deploy.artifacts_root":     {"LOTTERY_DEPLOY_ARTIFACTS_ROOT"},
		"drawlog.dsn":               {"LOTTERY_DRAWLOG_DSN"},
		"log.level":                 {"LOTTERY_LOG_LEVEL"},
	}
)

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		inputs := slices.Insert(slices.Clone(envs), 0, key)

		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Network.Type {
	case NetworkSimulated:
	case NetworkRPC:
		if c.Network.ChainSelector == 0 {
			errs = append(errs, errors.New("network.chain_selector is required for rpc networks"))
		} else if _, err := chainsel.GetChainIDFromSelector(c.Network.ChainSelector); err != nil {
			errs = append(errs, fmt.Errorf("network.chain_selector: %w", err))
		}
		if len(c.Network.RPCs) == 0 {
			errs = append(errs, errors.New("network.rpcs requires at least one RPC for rpc networks"))
		}
		for i, rpc := range c.Network.RPCs {
			if _, err := rpc.ToRPC(); err != nil {
				errs = append(errs, fmt.Errorf("network.rpcs[%d]: %w", i, err))
			}
		}
		if !c.Wallet.configured() {
			errs = append(errs, errors.New("wallet: one of private_key, mnemonic or kms.key_id is required for rpc networks"))
		}
	default:
		errs = append(errs, fmt.Errorf("network.type: unknown network %q", c.Network.Type))
	}

	if c.Lottery.Address != "" && !common.IsHexAddress(c.Lottery.Address) {
		errs = append(errs, fmt.Errorf("lottery.address: invalid address %q", c.Lottery.Address))
	}
	seen := make(map[string]bool, len(c.Lottery.Tokens))
	for i, tok := range c.Lottery.Tokens {
		if tok.Key == "" {
			errs = append(errs, fmt.Errorf("lottery.tokens[%d]: key is required", i))
		}
		switch {
		case tok.Address == "" && c.Network.Type == NetworkSimulated:
		case !common.IsHexAddress(tok.Address):
			errs = append(errs, fmt.Errorf("lottery.tokens[%d]: invalid address %q", i, tok.Address))
		case seen[strings.ToLower(tok.Address)]:
			errs = append(errs, fmt.Errorf("lottery.tokens[%d]: duplicate address %s", i, tok.Address))
		default:
			seen[strings.ToLower(tok.Address)] = true
		}
	}

	if d := c.FHE.DecryptDurationDays; d < 1 || d > 365 {
		errs = append(errs, fmt.Errorf("fhe.decrypt_duration_days: must be within 1..365, got %d", d))
	}

	if _, err := c.Log.ZapLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

func (w WalletConfig) configured() bool {
	return w.PrivateKey != "" || w.Mnemonic != "" || w.KMS.KeyID != ""
}

// ToRPC converts the endpoint to the client representation.
func (r RPCConfig) ToRPC() (rpcclient.RPC, error) {
	pref, err := rpcclient.URLSchemePreferenceFromString(r.PreferredURLScheme)
	if err != nil {
		return rpcclient.RPC{}, err
	}
	if r.WSURL == "" && r.HTTPURL == "" {
		return rpcclient.RPC{}, fmt.Errorf("RPC %q has no URL", r.Name)
	}

	return rpcclient.RPC{
		Name:               r.Name,
		WSURL:              r.WSURL,
		HTTPURL:            r.HTTPURL,
		PreferredURLScheme: pref,
	}, nil
}

// LotteryAddress returns the configured lottery address, or the zero address.
func (c *Config) LotteryAddress() common.Address {
	if !common.IsHexAddress(c.Lottery.Address) {
		return common.Address{}
	}

	return common.HexToAddress(c.Lottery.Address)
}

// ZapLevel parses the log level. An empty level is info.
func (l LogConfig) ZapLevel() (zapcore.Level, error) {
	if l.Level == "" {
		return zapcore.InfoLevel, nil
	}

	return zapcore.ParseLevel(l.Level)
}
