package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"github.com/samber/lo"
	"golang.org/x/xerrors"
)

const (
	// DefaultRequestTimeout is the default timeout for each node request.
	DefaultRequestTimeout = 15 * time.Second
	// DefaultConsensusPercentage is the share of queried nodes that must agree.
	DefaultConsensusPercentage = 20
	// DefaultTransactionFee is the fee attached to every transaction, in SAS.
	DefaultTransactionFee = 1000000
	// DefaultTransactionVersion is the transaction record version.
	DefaultTransactionVersion = "1.0"
	// DefaultEngineInitTimeout is how long the engine may take to come up
	// before a warning is logged.
	DefaultEngineInitTimeout = 10 * time.Second
	// DefaultConfirmationTimeout bounds VerifyTransaction polling.
	DefaultConfirmationTimeout = time.Minute

	envPrefix = "ZCN"
)

// ErrDomainRequired is returned when neither a domain nor a static
// miner/sharder list is configured.
var ErrDomainRequired = errors.New("domain is required")

// Duration wraps time.Duration so it can be written as "15s" in TOML files.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Decode implements envconfig.Decoder.
func (d *Duration) Decode(value string) error {
	return d.UnmarshalText([]byte(value))
}

// Endpoints is a list of node base URLs that also decodes from a comma
// separated string.
type Endpoints []string

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Endpoints) UnmarshalText(text []byte) error {
	parsed, err := ParseEndpoints(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// Decode implements envconfig.Decoder.
func (e *Endpoints) Decode(value string) error {
	return e.UnmarshalText([]byte(value))
}

// UnmarshalTOML implements toml.Unmarshaler. It accepts an array of URLs as
// well as a comma separated string.
func (e *Endpoints) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case string:
		return e.UnmarshalText([]byte(v))
	case []any:
		parts := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return xerrors.Errorf("endpoint %d: expected a string, got %T", i, item)
			}
			parts = append(parts, s)
		}
		return e.UnmarshalText([]byte(strings.Join(parts, ",")))
	default:
		return xerrors.Errorf("endpoints: expected a string or an array, got %T", v)
	}
}

// Config holds the SDK configuration.
type Config struct {
	// Domain is the network domain used for discovery, with or without scheme.
	Domain string `toml:"domain" envconfig:"DOMAIN"`
	// Miners and Sharders, when both set, replace discovery.
	Miners   Endpoints `toml:"miners" envconfig:"MINERS"`
	Sharders Endpoints `toml:"sharders" envconfig:"SHARDERS"`

	RequestTimeout      Duration `toml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	ConsensusPercentage int      `toml:"consensus_percentage" envconfig:"CONSENSUS_PERCENTAGE"`

	TransactionFee     int64  `toml:"transaction_fee" envconfig:"TRANSACTION_FEE"`
	TransactionVersion string `toml:"transaction_version" envconfig:"TRANSACTION_VERSION"`

	// DiscoveryCacheTTL caches discovery results; zero re-discovers per call.
	DiscoveryCacheTTL Duration `toml:"discovery_cache_ttl" envconfig:"DISCOVERY_CACHE_TTL"`

	EngineAddr        string   `toml:"engine_addr" envconfig:"ENGINE_ADDR"`
	EngineInitTimeout Duration `toml:"engine_init_timeout" envconfig:"ENGINE_INIT_TIMEOUT"`

	ConfirmationTimeout Duration `toml:"confirmation_timeout" envconfig:"CONFIRMATION_TIMEOUT"`
}

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		RequestTimeout:      Duration(DefaultRequestTimeout),
		ConsensusPercentage: DefaultConsensusPercentage,
		TransactionFee:      DefaultTransactionFee,
		TransactionVersion:  DefaultTransactionVersion,
		EngineInitTimeout:   Duration(DefaultEngineInitTimeout),
		ConfirmationTimeout: Duration(DefaultConfirmationTimeout),
	}
}

// Load builds a Config from defaults, the optional TOML file at path and
// ZCN_* environment variables, in that order of precedence (last wins).
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, xerrors.Errorf("stat config %s: %w", path, err)
		}
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, xerrors.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, xerrors.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration before any network call is made.
func (c *Config) Validate() error {
	if c.ConsensusPercentage < 1 || c.ConsensusPercentage > 100 {
		return xerrors.Errorf("consensus percentage must be within 1..100, got %d", c.ConsensusPercentage)
	}
	if c.RequestTimeout <= 0 {
		return xerrors.Errorf("request timeout must be positive, got %s", time.Duration(c.RequestTimeout))
	}
	if c.TransactionFee < 0 {
		return xerrors.Errorf("transaction fee cannot be negative, got %d", c.TransactionFee)
	}
	if strings.TrimSpace(c.Domain) == "" && !c.HasStaticNetwork() {
		return ErrDomainRequired
	}
	return nil
}

// HasStaticNetwork reports whether miners and sharders are both configured,
// in which case discovery is skipped.
func (c *Config) HasStaticNetwork() bool {
	return len(c.Miners) > 0 && len(c.Sharders) > 0
}

// ParseEndpoints parses a comma-separated list of node base URLs:
// "https://a/sharder01,https://b/sharder01"
// Trailing slashes are trimmed and duplicates dropped, preserving order.
func ParseEndpoints(s string) ([]string, error) {
	if s == "" {
		return []string{}, nil
	}

	parts := strings.Split(s, ",")
	endpoints := make([]string, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, "http://") && !strings.HasPrefix(part, "https://") {
			return nil, xerrors.Errorf("invalid endpoint %q (expected http:// or https:// URL)", part)
		}
		endpoints = append(endpoints, strings.TrimRight(part, "/"))
	}

	return lo.Uniq(endpoints), nil
}
