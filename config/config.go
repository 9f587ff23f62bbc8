package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFileEnvName = "STOREFRONT_CONFIG_FILE"
	envPrefix         = "STOREFRONT"
)

const (
	DriverLevelDB  = "leveldb"
	DriverPostgres = "postgres"
)

var ErrInvalidConfig = errors.New("invalid config")

type httpServer struct {
	Addr              string        `mapstructure:"addr"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
}

type catalog struct {
	Source    string `mapstructure:"source"`
	ImagesDir string `mapstructure:"images_dir"`
}

type storage struct {
	Driver      string `mapstructure:"driver"`
	LevelDBPath string `mapstructure:"leveldb_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

type ui struct {
	TotalPrecision  int32         `mapstructure:"total_precision"`
	ConfirmationTTL time.Duration `mapstructure:"confirmation_ttl"`
}

type broker struct {
	Enabled            bool     `mapstructure:"enabled"`
	SeedBrokers        []string `mapstructure:"seed_brokers"`
	SchemaRegistryURLs []string `mapstructure:"schema_registry_urls"`
	OrdersTopic        string   `mapstructure:"orders_topic"`
}

type Config struct {
	LogLevel slog.Level `mapstructure:"log_level"`
	HTTP     httpServer `mapstructure:"http"`
	Catalog  catalog    `mapstructure:"catalog"`
	Storage  storage    `mapstructure:"storage"`
	UI       ui         `mapstructure:"ui"`
	Broker   broker     `mapstructure:"broker"`
}

// Load reads the config file named by the env or the --config flag and
// exits the process on failure. Without a file the defaults are used.
func Load() Config {
	cfg, err := LoadFile(getConfigFilepath())
	if err != nil {
		die(err)
	}
	return cfg
}

// LoadFile reads path over the defaults. Keys may be overridden by
// STOREFRONT_ prefixed env vars, e.g. STOREFRONT_HTTP_ADDR.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	err := v.UnmarshalExact(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.request_timeout", 5*time.Second)
	v.SetDefault("http.read_header_timeout", 5*time.Second)
	v.SetDefault("http.idle_timeout", 30*time.Second)

	v.SetDefault("catalog.source", "data/data.json")
	v.SetDefault("catalog.images_dir", "images")

	v.SetDefault("storage.driver", DriverLevelDB)
	v.SetDefault("storage.leveldb_path", "orders.db")
	v.SetDefault("storage.postgres_dsn", "")

	v.SetDefault("ui.total_precision", 0)
	v.SetDefault("ui.confirmation_ttl", 2*time.Second)

	v.SetDefault("broker.enabled", false)
	v.SetDefault("broker.seed_brokers", []string{})
	v.SetDefault("broker.schema_registry_urls", []string{})
	v.SetDefault("broker.orders_topic", "orders-confirmed")
}

func (c Config) validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverLevelDB:
		if c.Storage.LevelDBPath == "" {
			errs = append(errs, errors.New("storage.leveldb_path: required"))
		}
	case DriverPostgres:
		switch dsn := c.Storage.PostgresDSN; {
		case dsn == "":
			errs = append(errs, errors.New("storage.postgres_dsn: required"))
		case !isPostgresURL(dsn):
			errs = append(errs, errors.New(
				"storage.postgres_dsn: must be a postgres:// or postgresql:// URL",
			))
		}
	default:
		errs = append(errs, fmt.Errorf(
			"storage.driver: unknown driver %q", c.Storage.Driver,
		))
	}

	if c.UI.TotalPrecision < 0 {
		errs = append(errs, errors.New("ui.total_precision: must not be negative"))
	}

	if c.Broker.Enabled {
		if len(c.Broker.SeedBrokers) == 0 {
			errs = append(errs, errors.New("broker.seed_brokers: required"))
		}
		if len(c.Broker.SchemaRegistryURLs) == 0 {
			errs = append(errs, errors.New("broker.schema_registry_urls: required"))
		}
		if c.Broker.OrdersTopic == "" {
			errs = append(errs, errors.New("broker.orders_topic: required"))
		}
	}

	if len(errs) != 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://")
}

func getConfigFilepath() string {
	cmdLine := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	arg := cmdLine.String("config", "", "config file")
	_ = cmdLine.Parse(os.Args[1:])
	env, ok := os.LookupEnv(configFileEnvName)
	if ok {
		return env
	}
	return *arg
}

func die(err error) {
	fmt.Printf("failed to load config: %v\n", err)
	os.Exit(2)
}

func (c Config) Print() {
	template := `
	General:
	LogLevel=%q

	HTTP:
	Addr=%q
	RequestTimeout=%s
	ReadHeaderTimeout=%s
	IdleTimeout=%s

	Catalog:
	Source=%q
	ImagesDir=%q

	Storage:
	Driver=%q
	LevelDBPath=%q
	PostgresDSN=%q

	UI:
	TotalPrecision=%d
	ConfirmationTTL=%s

	Broker:
	Enabled=%t
	SeedBrokers=%q
	SchemaRegistryURLs=%q
	OrdersTopic=%q

`
	fmt.Println("Loaded config:")
	fmt.Printf(
		strings.TrimLeft(template, "\n"),
		c.LogLevel,
		c.HTTP.Addr,
		c.HTTP.RequestTimeout,
		c.HTTP.ReadHeaderTimeout,
		c.HTTP.IdleTimeout,
		c.Catalog.Source,
		c.Catalog.ImagesDir,
		c.Storage.Driver,
		c.Storage.LevelDBPath,
		maskDSN(c.Storage.PostgresDSN),
		c.UI.TotalPrecision,
		c.UI.ConfirmationTTL,
		c.Broker.Enabled,
		c.Broker.SeedBrokers,
		c.Broker.SchemaRegistryURLs,
		c.Broker.OrdersTopic,
	)
}

// maskDSN hides the password of a URL style DSN.
func maskDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, ok := strings.Cut(userinfo, ":")
	if !ok {
		return dsn
	}
	return scheme + "://" + user + ":***@" + host
}
