package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configFileEnvName = "INVENTORY_CONFIG_FILE"
	envPrefix         = "INVENTORY"
	defaultConfigFile = "config.yaml"
)

type api struct {
	BaseURL string `mapstructure:"base_url"`
}

type storage struct {
	Driver       string `mapstructure:"driver"`
	Path         string `mapstructure:"path"`
	DSN          string `mapstructure:"dsn"`
	Key          string `mapstructure:"key"`
	Codec        string `mapstructure:"codec"`
	OpenAttempts int    `mapstructure:"open_attempts"`
}

type tlsFiles struct {
	CA   string `mapstructure:"ca"`
	Cert string `mapstructure:"cert"`
	Key  string `mapstructure:"key"`
}

type broker struct {
	SeedBrokers        []string      `mapstructure:"seed_brokers"`
	SchemaRegistryURLs []string      `mapstructure:"schema_registry_urls"`
	Topic              string        `mapstructure:"topic"`
	PublishTimeout     time.Duration `mapstructure:"publish_timeout"`
	TLS                tlsFiles      `mapstructure:"tls"`
}

type Config struct {
	LogLevel       slog.Level `mapstructure:"log_level"`
	NodeID         int64      `mapstructure:"node_id"`
	HTTPServerAddr string     `mapstructure:"http_server_addr"`
	API            api        `mapstructure:"api"`
	Storage        storage    `mapstructure:"storage"`
	Broker         broker     `mapstructure:"broker"`
}

// ChangeFeedEnabled reports whether product changes are published.
func (c Config) ChangeFeedEnabled() bool {
	return len(c.Broker.SeedBrokers) != 0
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("node_id", 0)
	v.SetDefault("http_server_addr", "127.0.0.1:8080")
	v.SetDefault("api.base_url", "https://fakestoreapi.com")
	v.SetDefault("storage.driver", "leveldb")
	v.SetDefault("storage.path", "inventory.db")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.key", "inventory-state")
	v.SetDefault("storage.codec", "json")
	v.SetDefault("storage.open_attempts", 5)
	v.SetDefault("broker.seed_brokers", []string{})
	v.SetDefault("broker.schema_registry_urls", []string{})
	v.SetDefault("broker.topic", "product-changes")
	v.SetDefault("broker.publish_timeout", 5*time.Second)
	v.SetDefault("broker.tls.ca", "")
	v.SetDefault("broker.tls.cert", "")
	v.SetDefault("broker.tls.key", "")
}

// Load reads the YAML file at path, applies INVENTORY_* environment
// overrides and validates the result. An empty path means defaults and
// environment only.
func Load(path string) (Config, error) {
	const op = "config.Load"

	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	var cfg Config
	err := v.UnmarshalExact(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}

// MustLoad is [Load] that exits the process on failure.
func MustLoad(path string) Config {
	cfg, err := Load(path)
	if err != nil {
		die(err)
	}
	return cfg
}

// ResolvePath picks the config file: the INVENTORY_CONFIG_FILE environment
// variable wins over flagValue. Without both, config.yaml in the working
// directory is used when it exists.
func ResolvePath(flagValue string) string {
	if env, ok := os.LookupEnv(configFileEnvName); ok {
		return env
	}
	if flagValue != "" {
		return flagValue
	}
	if _, err := os.Stat(defaultConfigFile); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return defaultConfigFile
}

func (c Config) validate() error {
	var errs []error

	switch c.Storage.Driver {
	case "leveldb":
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path: required for leveldb"))
		}
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn: required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown %q", c.Storage.Driver))
	}

	switch c.Storage.Codec {
	case "json", "avro":
	default:
		errs = append(errs, fmt.Errorf("storage.codec: unknown %q", c.Storage.Codec))
	}

	if c.Storage.Key == "" {
		errs = append(errs, errors.New("storage.key: required"))
	}
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url: required"))
	}
	if c.ChangeFeedEnabled() && c.Broker.Topic == "" {
		errs = append(errs, errors.New("broker.topic: required with seed_brokers"))
	}
	if c.Broker.PublishTimeout <= 0 {
		errs = append(errs, errors.New("broker.publish_timeout: must be positive"))
	}

	return errors.Join(errs...)
}

func die(err error) {
	fmt.Printf("failed to load config: %v\n", err)
	os.Exit(2)
}

func (c Config) Print() {
	c.Fprint(os.Stdout)
}

func (c Config) Fprint(w io.Writer) {
	tamplate := `
	General:
	LogLevel=%q
	NodeID=%d
	HTTPServerAddr=%q
	APIBaseURL=%q

	Storage:
	Driver=%q
	Path=%q
	DSN=%q
	Key=%q
	Codec=%q

	BrokerConfig:
	SeedBrokers=%q
	SchemaRegistryURLs=%q
	Topic=%q
	PublishTimeout=%s
	TLS=%t

`
	fmt.Fprintln(w, "Loaded config:")
	fmt.Fprintf(
		w,
		strings.TrimLeft(tamplate, "\n"),
		c.LogLevel,
		c.NodeID,
		c.HTTPServerAddr,
		c.API.BaseURL,
		c.Storage.Driver,
		c.Storage.Path,
		redact(c.Storage.DSN),
		c.Storage.Key,
		c.Storage.Codec,
		c.Broker.SeedBrokers,
		c.Broker.SchemaRegistryURLs,
		c.Broker.Topic,
		c.Broker.PublishTimeout,
		c.Broker.TLS.CA != "",
	)
}

// redact hides the password of a URL style DSN.
func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
