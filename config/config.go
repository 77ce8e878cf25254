package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config describes everything saisend needs to run: the RPC listen address,
// the storage location, the value-asset parameters and the router's
// immutable identities.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	NetworkName   string `toml:"NetworkName"`

	AssetSymbol   string `toml:"AssetSymbol"`
	AssetName     string `toml:"AssetName"`
	AssetDecimals uint8  `toml:"AssetDecimals"`

	RouterAddress string `toml:"RouterAddress"`
	Beneficiary   string `toml:"Beneficiary"`
	Operator      string `toml:"Operator"`

	MinimumAmount      string `toml:"MinimumAmount"`
	CollectibleBaseURI string `toml:"CollectibleBaseURI"`

	TreasuryLowThreshold  string `toml:"TreasuryLowThreshold"`
	TreasuryHighThreshold string `toml:"TreasuryHighThreshold"`
}

const defaultConfig = `# saisend configuration

ListenAddress = ":8645"
DataDir       = "./saisen-data"
NetworkName   = "saisen-local"

AssetSymbol   = "JPYC"
AssetName     = "JPY Coin"
AssetDecimals = 18

# Identities are 20-byte hex addresses and must be filled in before start.
RouterAddress = ""
Beneficiary   = ""
# Optional: receives the token minter/admin roles for dev-network faucets.
Operator      = ""

# 115 JPYC at 18 decimals.
MinimumAmount      = "115000000000000000000"
CollectibleBaseURI = ""

# Treasury monitoring thresholds in smallest units; empty disables a bound.
TreasuryLowThreshold  = "10000000000000000000000"
TreasuryHighThreshold = "1000000000000000000000000"
`

// Load reads the configuration from the given path. When the file does not
// exist a commented template is written there and an error is returned so
// the operator can fill in the identities.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("config template written to %s; fill in RouterAddress and Beneficiary before starting", path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(defaultConfig), 0o644)
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./saisen-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "saisen-local"
	}
	if strings.TrimSpace(cfg.AssetSymbol) == "" {
		cfg.AssetSymbol = "JPYC"
	}
}

// Validate checks address formats and amount encodings without resolving
// them; use Addresses/Amounts for the parsed values.
func (cfg *Config) Validate() error {
	if _, err := parseAddress("RouterAddress", cfg.RouterAddress, true); err != nil {
		return err
	}
	if _, err := parseAddress("Beneficiary", cfg.Beneficiary, true); err != nil {
		return err
	}
	if _, err := parseAddress("Operator", cfg.Operator, false); err != nil {
		return err
	}
	if _, err := parseAmount("MinimumAmount", cfg.MinimumAmount, true); err != nil {
		return err
	}
	if _, err := parseAmount("TreasuryLowThreshold", cfg.TreasuryLowThreshold, false); err != nil {
		return err
	}
	if _, err := parseAmount("TreasuryHighThreshold", cfg.TreasuryHighThreshold, false); err != nil {
		return err
	}
	return nil
}

func parseAddress(field, value string, required bool) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		if required {
			return out, fmt.Errorf("config: %s is required", field)
		}
		return out, nil
	}
	if !common.IsHexAddress(trimmed) {
		return out, fmt.Errorf("config: %s is not a valid hex address: %q", field, trimmed)
	}
	parsed := common.HexToAddress(trimmed)
	if parsed == (common.Address{}) && required {
		return out, fmt.Errorf("config: %s must not be the zero address", field)
	}
	copy(out[:], parsed.Bytes())
	return out, nil
}

func parseAmount(field, value string, required bool) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		if required {
			return nil, fmt.Errorf("config: %s is required", field)
		}
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("config: %s must be a non-negative decimal integer: %q", field, trimmed)
	}
	return amount, nil
}

// RouterAddr returns the parsed router identity.
func (cfg *Config) RouterAddr() [20]byte {
	addr, _ := parseAddress("RouterAddress", cfg.RouterAddress, true)
	return addr
}

// BeneficiaryAddr returns the parsed beneficiary identity.
func (cfg *Config) BeneficiaryAddr() [20]byte {
	addr, _ := parseAddress("Beneficiary", cfg.Beneficiary, true)
	return addr
}

// OperatorAddr returns the parsed operator identity (zero when unset).
func (cfg *Config) OperatorAddr() [20]byte {
	addr, _ := parseAddress("Operator", cfg.Operator, false)
	return addr
}

// Minimum returns the parsed minimum offering amount.
func (cfg *Config) Minimum() *big.Int {
	amount, _ := parseAmount("MinimumAmount", cfg.MinimumAmount, true)
	return amount
}

// TreasuryLow returns the parsed low-balance threshold, nil when disabled.
func (cfg *Config) TreasuryLow() *big.Int {
	amount, _ := parseAmount("TreasuryLowThreshold", cfg.TreasuryLowThreshold, false)
	return amount
}

// TreasuryHigh returns the parsed high-balance threshold, nil when disabled.
func (cfg *Config) TreasuryHigh() *big.Int {
	amount, _ := parseAmount("TreasuryHighThreshold", cfg.TreasuryHighThreshold, false)
	return amount
}
