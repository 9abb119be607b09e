package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "DVMJOB"

var DefaultRelays = []string{
	"wss://relay.damus.io",
	"wss://nos.lol",
	"wss://relay.nostr.band",
}

type Config struct {
	Relays         []string      `mapstructure:"relays"`
	ProviderPubkey string        `mapstructure:"provider_pubkey"`
	SecretKey      string        `mapstructure:"secret_key"`
	KeyFile        string        `mapstructure:"key_file"`
	PaymentTimeout time.Duration `mapstructure:"payment_timeout"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	LogLevel       string        `mapstructure:"log_level"`
	Wallet         Wallet        `mapstructure:"wallet"`
	Metrics        Metrics       `mapstructure:"metrics"`
}

type Wallet struct {
	// Backend is one of none, lnd or lnbits.
	Backend string `mapstructure:"backend"`
	Lnd     Lnd    `mapstructure:"lnd"`
	Lnbits  Lnbits `mapstructure:"lnbits"`
}

type Lnd struct {
	Address     string `mapstructure:"address"`
	MacaroonHex string `mapstructure:"macaroon_hex"`
	TLSPath     string `mapstructure:"tls_path"`
	Network     string `mapstructure:"network"`
}

type Lnbits struct {
	URL string `mapstructure:"url"`
	Key string `mapstructure:"key"`
}

type Metrics struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("relays", DefaultRelays)
	v.SetDefault("key_file", defaultKeyFile())
	v.SetDefault("payment_timeout", 5*time.Minute)
	v.SetDefault("publish_timeout", 10*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("wallet.backend", "none")
	v.SetDefault("wallet.lnd.network", "mainnet")
	v.SetDefault("provider_pubkey", "")
	v.SetDefault("secret_key", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("wallet.lnd.address", "")
	v.SetDefault("wallet.lnd.macaroon_hex", "")
	v.SetDefault("wallet.lnd.tls_path", "")
	v.SetDefault("wallet.lnbits.url", "")
	v.SetDefault("wallet.lnbits.key", "")
}

func defaultKeyFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "dvmjob.key"
	}

	return filepath.Join(dir, "dvmjob", "secret.key")
}

// Load reads the config file at path, if any, and overlays DVMJOB_ environment
// variables, e.g. DVMJOB_WALLET_BACKEND.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	relays := make([]string, 0, len(c.Relays))
	for _, r := range c.Relays {
		if r = strings.TrimSpace(r); r != "" {
			relays = append(relays, r)
		}
	}
	c.Relays = relays

	if len(c.Relays) == 0 {
		return errors.New("must provide at least one relay")
	}

	if c.PaymentTimeout < 0 || c.PublishTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}

	switch c.Wallet.Backend {
	case "", "none":
	case "lnd":
		if c.Wallet.Lnd.Address == "" {
			return errors.New("wallet.lnd.address is required for the lnd wallet")
		}
	case "lnbits":
		if c.Wallet.Lnbits.URL == "" || c.Wallet.Lnbits.Key == "" {
			return errors.New("wallet.lnbits.url and wallet.lnbits.key are required for the lnbits wallet")
		}
	default:
		return fmt.Errorf("unknown wallet backend %q", c.Wallet.Backend)
	}

	return nil
}
