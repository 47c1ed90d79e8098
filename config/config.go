package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the node-level configuration loaded from TOML.
type Config struct {
	ListenAddress   string `toml:"ListenAddress"`
	DataDir         string `toml:"DataDir"`
	NetworkName     string `toml:"NetworkName"`
	Environment     string `toml:"Environment"`
	JournalCapacity int    `toml:"JournalCapacity"`

	Ledger  Ledger  `toml:"ledger"`
	Genesis Genesis `toml:"genesis"`
}

// Genesis seeds native balances on first boot. Keys are 20-byte hex
// addresses, values decimal amount strings; the allocation is applied once
// and recorded in state so restarts never double-credit.
type Genesis struct {
	Native map[string]string `toml:"native"`
}

// Ledger carries the settlement parameters injected into the engines. All
// addresses are 20-byte hex strings; amounts are whole credit units.
type Ledger struct {
	RegistrationReward uint64 `toml:"RegistrationReward"`
	AgreementFee       uint64 `toml:"AgreementFee"`
	BurnPercent        uint32 `toml:"BurnPercent"`
	PlatformFeeBps     uint32 `toml:"PlatformFeeBps"`
	ArbiterFeeBps      uint32 `toml:"ArbiterFeeBps"`
	FeeCollector       string `toml:"FeeCollector"`
	Vault              string `toml:"Vault"`
	Owner              string `toml:"Owner"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8645"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./data"
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "pactnet-local"
	}
	if c.JournalCapacity <= 0 {
		c.JournalCapacity = 4096
	}
}

// Validate rejects configurations the engines would refuse at construction.
func (c *Config) Validate() error {
	if c.Ledger.BurnPercent > 100 {
		return fmt.Errorf("config: ledger burn percent out of range: %d", c.Ledger.BurnPercent)
	}
	if c.Ledger.PlatformFeeBps > 10_000 {
		return fmt.Errorf("config: platform fee bps out of range: %d", c.Ledger.PlatformFeeBps)
	}
	if c.Ledger.ArbiterFeeBps > 10_000 {
		return fmt.Errorf("config: arbiter fee bps out of range: %d", c.Ledger.ArbiterFeeBps)
	}
	for name, value := range map[string]string{
		"FeeCollector": c.Ledger.FeeCollector,
		"Vault":        c.Ledger.Vault,
		"Owner":        c.Ledger.Owner,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("config: ledger %s address required", name)
		}
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		Ledger: Ledger{
			RegistrationReward: 100,
			AgreementFee:       10,
			BurnPercent:        50,
			PlatformFeeBps:     200,
			ArbiterFeeBps:      100,
			FeeCollector:       "0x" + strings.Repeat("fe", 20),
			Vault:              "0x" + strings.Repeat("ec", 20),
			Owner:              "0x" + strings.Repeat("01", 20),
		},
	}
	cfg.applyDefaults()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
