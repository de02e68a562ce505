// Package config loads the service configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence.
package config

import (
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gitlab.com/dirk.krummacker/location-contacts/internal/auth"
	"gitlab.com/dirk.krummacker/location-contacts/internal/geocode"
)

// EnvPrefix prefixes every environment variable, e.g. CONTACTS_DATABASE_HOST for database.host.
const EnvPrefix = "CONTACTS"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Geocoder geocode.Config `mapstructure:"geocoder"`
	Map      MapConfig      `mapstructure:"map"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	RequestLogging  bool          `mapstructure:"requestLogging"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

// DatabaseConfig either carries a complete DSN or the parts to build one from.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type AuthConfig struct {
	auth.Config `mapstructure:",squash"`
	// SignInURL is where the landing page sends visitors to sign in with the identity provider.
	SignInURL string `mapstructure:"signInURL"`
}

// MapConfig holds the point the creation form starts at before the browser reports a position.
type MapConfig struct {
	DefaultLatitude  float64 `mapstructure:"defaultLatitude"`
	DefaultLongitude float64 `mapstructure:"defaultLongitude"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.requestLogging", true)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost:3306")
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "contacts")
	v.SetDefault("auth.jwksURL", "")
	v.SetDefault("auth.publicKeyFile", "")
	v.SetDefault("auth.hmacSecret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.signInURL", "")
	v.SetDefault("geocoder.baseURL", geocode.DefaultBaseURL)
	v.SetDefault("geocoder.userAgent", "location-contacts/1.0")
	v.SetDefault("geocoder.timeout", 10*time.Second)
	v.SetDefault("geocoder.requestsPerSecond", 1.0)
	v.SetDefault("map.defaultLatitude", 33.8703)
	v.SetDefault("map.defaultLongitude", -117.9243)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads the configuration. file may be empty, in which case only defaults and environment
// apply. The environment variables DBHOST, DBUSER, DBPWD, PORT and GIN_LOGGING are honoured as
// well.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range map[string]string{
		"database.host":     "DBHOST",
		"database.user":     "DBUSER",
		"database.password": "DBPWD",
	} {
		if err := v.BindEnv(key, envName(key), legacy); err != nil {
			return nil, err
		}
	}
	if err := v.BindEnv("server.address", envName("server.address")); err != nil {
		return nil, err
	}
	if err := v.BindEnv("legacy.port", "PORT"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("legacy.ginLogging", "GIN_LOGGING"); err != nil {
		return nil, err
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", file)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
		if port := v.GetString("legacy.port"); port != "" {
			cfg.Server.Address = ":" + port
		}
	}
	if strings.EqualFold(v.GetString("legacy.ginLogging"), "off") {
		cfg.Server.RequestLogging = false
	}
	return &cfg, nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// DriverName is the database/sql driver to open: "mysql" or "pgx".
func (d DatabaseConfig) DriverName() string {
	switch strings.ToLower(d.Driver) {
	case "pgx", "postgres", "postgresql":
		return "pgx"
	default:
		return "mysql"
	}
}

// DataSourceName returns the DSN for the driver. A MySQL DSN always gets parseTime and
// clientFoundRows switched on: dates must scan into time values, and an update that rewrites a
// row with identical values must still count as a match.
func (d DatabaseConfig) DataSourceName() (string, error) {
	if d.DriverName() == "pgx" {
		if d.DSN != "" {
			return d.DSN, nil
		}
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(d.User, d.Password),
			Host:   d.Host,
			Path:   "/" + d.Name,
		}
		return u.String(), nil
	}

	cfg := mysql.NewConfig()
	if d.DSN != "" {
		parsed, err := mysql.ParseDSN(d.DSN)
		if err != nil {
			return "", errors.Wrap(err, "parse database dsn")
		}
		cfg = parsed
	} else {
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = d.Host
		if _, _, err := net.SplitHostPort(d.Host); err != nil {
			cfg.Addr = net.JoinHostPort(d.Host, "3306")
		}
		cfg.DBName = d.Name
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}
