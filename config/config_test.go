package config

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
ListenAddress = ":8645"
DataDir       = "/tmp/saisen-test"

AssetSymbol   = "JPYC"
AssetName     = "JPY Coin"
AssetDecimals = 18

RouterAddress = "0x0404040404040404040404040404040404040404"
Beneficiary   = "0x0303030303030303030303030303030303030303"
Operator      = "0x0101010101010101010101010101010101010101"

MinimumAmount      = "115000000000000000000"
CollectibleBaseURI = "https://example.com/metadata/"

TreasuryLowThreshold  = "10000"
TreasuryHighThreshold = "1000000"
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AssetSymbol != "JPYC" || cfg.AssetDecimals != 18 {
		t.Fatalf("unexpected asset config: %+v", cfg)
	}
	if cfg.RouterAddr() == ([20]byte{}) {
		t.Fatal("router address must parse to a non-zero identity")
	}
	want := new(big.Int)
	want.SetString("115000000000000000000", 10)
	if cfg.Minimum().Cmp(want) != 0 {
		t.Fatalf("minimum = %s, want %s", cfg.Minimum(), want)
	}
	if cfg.TreasuryLow().Cmp(big.NewInt(10000)) != 0 {
		t.Fatalf("treasury low = %s", cfg.TreasuryLow())
	}
}

func TestLoadWritesTemplateWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing config")
	}
	if !strings.Contains(err.Error(), "template written") {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("template file not created: %v", statErr)
	}
}

func TestLoadRejectsMissingIdentities(t *testing.T) {
	body := strings.Replace(validConfig, `Beneficiary   = "0x0303030303030303030303030303030303030303"`, `Beneficiary = ""`, 1)
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error for missing beneficiary")
	}
}

func TestLoadRejectsZeroAddress(t *testing.T) {
	body := strings.Replace(validConfig,
		"0x0404040404040404040404040404040404040404",
		"0x0000000000000000000000000000000000000000", 1)
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error for zero router address")
	}
}

func TestLoadRejectsMalformedAmount(t *testing.T) {
	body := strings.Replace(validConfig, `MinimumAmount      = "115000000000000000000"`, `MinimumAmount = "115 JPYC"`, 1)
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error for malformed amount")
	}
}

func TestOptionalFieldsMayBeEmpty(t *testing.T) {
	body := strings.Replace(validConfig, `Operator      = "0x0101010101010101010101010101010101010101"`, `Operator = ""`, 1)
	body = strings.Replace(body, `TreasuryLowThreshold  = "10000"`, `TreasuryLowThreshold = ""`, 1)
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OperatorAddr() != ([20]byte{}) {
		t.Fatal("operator should be zero when unset")
	}
	if cfg.TreasuryLow() != nil {
		t.Fatal("treasury low should be nil when unset")
	}
}
