package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.FileExists(t, path)
	require.Equal(t, ":8645", cfg.ListenAddress)
	require.Equal(t, "./data", cfg.DataDir)
	require.Equal(t, "pactnet-local", cfg.NetworkName)
	require.Equal(t, 4096, cfg.JournalCapacity)
	require.Equal(t, uint64(100), cfg.Ledger.RegistrationReward)
	require.Equal(t, uint64(10), cfg.Ledger.AgreementFee)
	require.Equal(t, uint32(50), cfg.Ledger.BurnPercent)
	require.Equal(t, uint32(200), cfg.Ledger.PlatformFeeBps)
	require.Equal(t, uint32(100), cfg.Ledger.ArbiterFeeBps)
	require.NotEmpty(t, cfg.Ledger.Vault)

	// A second load reads the file written on first boot.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadParsesCustomFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
ListenAddress = ":9900"
DataDir = "/var/lib/pactnet"
NetworkName = "pactnet-test"
Environment = "staging"
JournalCapacity = 128

[ledger]
RegistrationReward = 250
AgreementFee = 20
BurnPercent = 25
PlatformFeeBps = 150
ArbiterFeeBps = 50
FeeCollector = "0x` + strings.Repeat("fe", 20) + `"
Vault = "0x` + strings.Repeat("ec", 20) + `"
Owner = "0x` + strings.Repeat("01", 20) + `"

[genesis.native]
"0x` + strings.Repeat("01", 20) + `" = "1000000"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9900", cfg.ListenAddress)
	require.Equal(t, "staging", cfg.Environment)
	require.Equal(t, 128, cfg.JournalCapacity)
	require.Equal(t, uint64(250), cfg.Ledger.RegistrationReward)
	require.Equal(t, uint32(25), cfg.Ledger.BurnPercent)
	require.Len(t, cfg.Genesis.Native, 1)
	require.Equal(t, "1000000", cfg.Genesis.Native["0x"+strings.Repeat("01", 20)])
}

func TestValidateBounds(t *testing.T) {
	base := func() *Config {
		return &Config{
			Ledger: Ledger{
				BurnPercent:    50,
				PlatformFeeBps: 200,
				ArbiterFeeBps:  100,
				FeeCollector:   "0x" + strings.Repeat("fe", 20),
				Vault:          "0x" + strings.Repeat("ec", 20),
				Owner:          "0x" + strings.Repeat("01", 20),
			},
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.Ledger.BurnPercent = 101
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Ledger.PlatformFeeBps = 10_001
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Ledger.ArbiterFeeBps = 10_001
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Ledger.Vault = ""
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Ledger.Owner = "   "
	require.Error(t, cfg.Validate())
}
