package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of the pingbot server and its tools.
type Config struct {
	// HTTPAddress is where the webhook endpoint listens.
	HTTPAddress string `yaml:"http_addr"`
	// GRPCAddress is where the read-only query surface listens.
	GRPCAddress string `yaml:"grpc_addr"`
	// LogLevel is the minimum zap level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// Timeout bounds every outbound call (push, reply, telemetry, geocode).
	Timeout time.Duration `yaml:"timeout"`
	// DemoActive arms the summary alarm and enables ping creation.
	DemoActive bool `yaml:"demo_active"`
	// AlarmPeriod is the interval between summary broadcasts.
	AlarmPeriod time.Duration `yaml:"alarm_period"`
	// PingTTL is how long a stored ping stays active.
	PingTTL time.Duration `yaml:"ping_ttl"`
	// QueryToken, when set, is required as a bearer token by the query surface.
	QueryToken string `yaml:"query_token"`
	// SingleInstance makes the server refuse to start next to another server process.
	SingleInstance bool `yaml:"single_instance"`

	// Line holds the messaging provider credentials.
	Line LineConfig `yaml:"line"`
	// Telemetry describes the external marker source.
	Telemetry TelemetryConfig `yaml:"telemetry"`
	// Geocode describes the free-text location lookup service.
	Geocode GeocodeConfig `yaml:"geocode"`
	// Users selects the subscriber registry backend.
	Users UsersConfig `yaml:"users"`
}

// LineConfig holds messaging provider settings.
type LineConfig struct {
	ChannelToken  string `yaml:"channel_token"`
	ChannelSecret string `yaml:"channel_secret"`
	APIURL        string `yaml:"api_url"`
}

// TelemetryConfig holds the GraphQL gateway settings and the queries issued per tick.
type TelemetryConfig struct {
	GatewayURL string           `yaml:"gateway_url"`
	Token      string           `yaml:"token"`
	Queries    []TelemetryQuery `yaml:"queries"`
}

// TelemetryQuery is one GraphQL query; Name is the root field holding the marker list.
type TelemetryQuery struct {
	Name     string `yaml:"name"`
	Document string `yaml:"document"`
}

// GeocodeConfig holds the geocoder settings.
type GeocodeConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Host   string `yaml:"host"`
}

// UsersConfig selects and configures the subscriber registry.
type UsersConfig struct {
	// Driver is one of memory, file, sqlite, postgres.
	Driver string `yaml:"driver"`
	// DSN is a file path for file and sqlite, a connection string for postgres.
	DSN string `yaml:"dsn"`
}

// Registry drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "pingbot-settings.yaml"

	// DefaultUsersFilename is the default SQLite file for subscribers.
	DefaultUsersFilename = "pingbot-users.sqlite"

	// DefaultUsersJSONFilename is the default JSON file for subscribers.
	DefaultUsersJSONFilename = "pingbot-users.json"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultAlarmPeriod is the default interval between summaries.
	DefaultAlarmPeriod = 30 * time.Second

	// DefaultPingTTL is the default ping lifetime.
	DefaultPingTTL = 60 * time.Second

	// DefaultLineAPIURL is the messaging provider API root.
	DefaultLineAPIURL = "https://api.line.me"

	// DefaultGeocodeURL is the geocoder search endpoint.
	DefaultGeocodeURL = "https://maptoolkit.p.rapidapi.com/geocode/search"

	// DefaultGeocodeHost is the RapidAPI host header for the geocoder.
	DefaultGeocodeHost = "maptoolkit.p.rapidapi.com"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// Environment variables that override secrets from the settings file.
const (
	EnvLineChannelToken  = "LINE_CHANNEL_TOKEN"
	EnvLineChannelSecret = "LINE_CHANNEL_SECRET"
	EnvTelemetryToken    = "TELEMETRY_GATEWAY_TOKEN"
	EnvGeocodeAPIKey     = "GEOCODE_API_KEY"
	EnvQueryToken        = "PINGBOT_QUERY_TOKEN"
	EnvDemoActive        = "DEMO_ACTIVE"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errHTTPAddressRequired is returned when the webhook address is missing.
	errHTTPAddressRequired = errors.New("http address must be provided")
	// errGRPCAddressRequired is returned when the query surface address is missing.
	errGRPCAddressRequired = errors.New("grpc address must be provided")
	// errUnknownDriver is returned for an unsupported registry driver.
	errUnknownDriver = errors.New("unknown users driver")
	// errPostgresDSNRequired is returned when the postgres driver has no DSN.
	errPostgresDSNRequired = errors.New("postgres users driver requires a dsn")
	// errQueryNameRequired is returned for a telemetry query without a root field name.
	errQueryNameRequired = errors.New("telemetry query name must be provided")
)

// DefaultTelemetryQueries returns the two marker queries issued when none are configured.
func DefaultTelemetryQueries() []TelemetryQuery {
	return []TelemetryQuery{
		{
			Name:     "TAK1Markers",
			Document: "query {\n  TAK1Markers {\n    uid\n    callsign\n    lat\n    lon\n    namespace\n  }\n}",
		},
		{
			Name:     "TAK2Markers",
			Document: "query {\n  TAK2Markers {\n    uid\n    callsign\n    lat\n    lon\n    namespace\n  }\n}",
		},
	}
}

// Load reads configuration from the provided path, applies environment
// overrides and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Config{SingleInstance: true}
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	ApplyEnv(&cfg, os.Getenv)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file carries channel secrets.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// ApplyEnv overrides secrets and the demo flag from the environment.
// getenv is os.Getenv in production.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	overrides := map[string]*string{
		EnvLineChannelToken:  &cfg.Line.ChannelToken,
		EnvLineChannelSecret: &cfg.Line.ChannelSecret,
		EnvTelemetryToken:    &cfg.Telemetry.Token,
		EnvGeocodeAPIKey:     &cfg.Geocode.APIKey,
		EnvQueryToken:        &cfg.QueryToken,
	}

	for key, target := range overrides {
		if v := getenv(key); v != "" {
			*target = v
		}
	}

	if v := strings.TrimSpace(getenv(EnvDemoActive)); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.DemoActive = enabled
		}
	}
}

// Validate checks the provided settings for required fields and fills defaults.
//
//nolint:cyclop // A flat list of checks reads better than helpers here.
func Validate(settings *Config) error {
	if settings.HTTPAddress == "" {
		return errHTTPAddressRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.HTTPAddress); err != nil {
		return fmt.Errorf("invalid http address: %w", err)
	}

	if settings.GRPCAddress == "" {
		return errGRPCAddressRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.GRPCAddress); err != nil {
		return fmt.Errorf("invalid grpc address: %w", err)
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.AlarmPeriod <= 0 {
		settings.AlarmPeriod = DefaultAlarmPeriod
	}

	if settings.PingTTL <= 0 {
		settings.PingTTL = DefaultPingTTL
	}

	if settings.Line.APIURL == "" {
		settings.Line.APIURL = DefaultLineAPIURL
	}

	if _, err := url.ParseRequestURI(settings.Line.APIURL); err != nil {
		return fmt.Errorf("invalid line api url: %w", err)
	}

	if settings.Telemetry.GatewayURL != "" {
		if _, err := url.ParseRequestURI(settings.Telemetry.GatewayURL); err != nil {
			return fmt.Errorf("invalid telemetry gateway url: %w", err)
		}
	}

	if len(settings.Telemetry.Queries) == 0 {
		settings.Telemetry.Queries = DefaultTelemetryQueries()
	}

	for i, q := range settings.Telemetry.Queries {
		if strings.TrimSpace(q.Name) == "" {
			return fmt.Errorf("telemetry query %d: %w", i, errQueryNameRequired)
		}
	}

	if settings.Geocode.URL == "" {
		settings.Geocode.URL = DefaultGeocodeURL
	}

	if settings.Geocode.Host == "" {
		settings.Geocode.Host = DefaultGeocodeHost
	}

	return validateUsers(&settings.Users)
}

// validateUsers checks the registry backend selection.
func validateUsers(users *UsersConfig) error {
	if users.Driver == "" {
		users.Driver = DriverSQLite
	}

	switch users.Driver {
	case DriverMemory:
		return nil
	case DriverFile:
		if users.DSN == "" {
			users.DSN = DefaultUsersJSONFilename
		}

		return nil
	case DriverSQLite:
		if users.DSN == "" {
			users.DSN = DefaultUsersFilename
		}

		return nil
	case DriverPostgres:
		if users.DSN == "" {
			return errPostgresDSNRequired
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownDriver, users.Driver)
	}
}
