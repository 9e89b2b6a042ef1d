package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Shared Postgres settings used to compose per-database URLs when the
	// explicit DATABASE_URL_* variables are not set.
	PostgresUser     string `mapstructure:"POSTGRES_USER"`
	PostgresPassword string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresHost     string `mapstructure:"POSTGRES_HOST"`
	PostgresPort     string `mapstructure:"POSTGRES_PORT"`

	// Per-database host overrides for deployments that run one Postgres per
	// domain. Empty values fall back to POSTGRES_HOST.
	PostgresHostUsers         string `mapstructure:"POSTGRES_HOST_USERS"`
	PostgresHostOrders        string `mapstructure:"POSTGRES_HOST_ORDERS"`
	PostgresHostClients       string `mapstructure:"POSTGRES_HOST_CLIENTS"`
	PostgresHostDevices       string `mapstructure:"POSTGRES_HOST_DEVICES"`
	PostgresHostGateways      string `mapstructure:"POSTGRES_HOST_GATEWAYS"`
	PostgresHostHistoUsers    string `mapstructure:"POSTGRES_HOST_HISTO_USERS"`
	PostgresHostHistoPatients string `mapstructure:"POSTGRES_HOST_HISTO_PATIENTS"`
	PostgresHostHistoReports  string `mapstructure:"POSTGRES_HOST_HISTO_REPORTS"`

	// Per-database name overrides. Empty values fall back to the conventional
	// iot_*/histo_* names.
	PostgresDBUsers         string `mapstructure:"POSTGRES_DB_USERS"`
	PostgresDBOrders        string `mapstructure:"POSTGRES_DB_ORDERS"`
	PostgresDBClients       string `mapstructure:"POSTGRES_DB_CLIENTS"`
	PostgresDBDevices       string `mapstructure:"POSTGRES_DB_DEVICES"`
	PostgresDBGateways      string `mapstructure:"POSTGRES_DB_GATEWAYS"`
	PostgresDBHistoUsers    string `mapstructure:"POSTGRES_DB_HISTO_USERS"`
	PostgresDBHistoPatients string `mapstructure:"POSTGRES_DB_HISTO_PATIENTS"`
	PostgresDBHistoReports  string `mapstructure:"POSTGRES_DB_HISTO_REPORTS"`

	DatabaseURLUsers         string `mapstructure:"DATABASE_URL_USERS"`
	DatabaseURLOrders        string `mapstructure:"DATABASE_URL_ORDERS"`
	DatabaseURLClients       string `mapstructure:"DATABASE_URL_CLIENTS"`
	DatabaseURLDevices       string `mapstructure:"DATABASE_URL_DEVICES"`
	DatabaseURLGateways      string `mapstructure:"DATABASE_URL_GATEWAYS"`
	DatabaseURLHistoUsers    string `mapstructure:"DATABASE_URL_HISTO_USERS"`
	DatabaseURLHistoPatients string `mapstructure:"DATABASE_URL_HISTO_PATIENTS"`
	DatabaseURLHistoReports  string `mapstructure:"DATABASE_URL_HISTO_REPORTS"`

	DBMaxConns int32 `mapstructure:"DB_MAX_CONNS"`
	DBMinConns int32 `mapstructure:"DB_MIN_CONNS"`

	JWTSigningKey   string `mapstructure:"JWT_SIGNING_KEY"`
	TokenTTLMinutes int    `mapstructure:"TOKEN_TTL_MINUTES"`

	DefaultTenant  string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`

	// Shared access token presented by field devices and gateways on the
	// telemetry ingest endpoints.
	DeviceAccessToken string `mapstructure:"DEVICE_ACCESS_TOKEN"`

	// External collaborator endpoints.
	RenderServiceURL string `mapstructure:"RENDER_SERVICE_URL"`
	VoiceServiceURL  string `mapstructure:"VOICE_SERVICE_URL"`
	VoiceAPIKey      string `mapstructure:"VOICE_API_KEY"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("TOKEN_TTL_MINUTES", 60*24*7)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("POSTGRES_USER")
	v.BindEnv("POSTGRES_PASSWORD")
	v.BindEnv("POSTGRES_HOST")
	v.BindEnv("POSTGRES_PORT")
	v.BindEnv("POSTGRES_HOST_USERS")
	v.BindEnv("POSTGRES_HOST_ORDERS")
	v.BindEnv("POSTGRES_HOST_CLIENTS")
	v.BindEnv("POSTGRES_HOST_DEVICES")
	v.BindEnv("POSTGRES_HOST_GATEWAYS")
	v.BindEnv("POSTGRES_HOST_HISTO_USERS")
	v.BindEnv("POSTGRES_HOST_HISTO_PATIENTS")
	v.BindEnv("POSTGRES_HOST_HISTO_REPORTS")
	v.BindEnv("POSTGRES_DB_USERS")
	v.BindEnv("POSTGRES_DB_ORDERS")
	v.BindEnv("POSTGRES_DB_CLIENTS")
	v.BindEnv("POSTGRES_DB_DEVICES")
	v.BindEnv("POSTGRES_DB_GATEWAYS")
	v.BindEnv("POSTGRES_DB_HISTO_USERS")
	v.BindEnv("POSTGRES_DB_HISTO_PATIENTS")
	v.BindEnv("POSTGRES_DB_HISTO_REPORTS")
	v.BindEnv("DATABASE_URL_USERS")
	v.BindEnv("DATABASE_URL_ORDERS")
	v.BindEnv("DATABASE_URL_CLIENTS")
	v.BindEnv("DATABASE_URL_DEVICES")
	v.BindEnv("DATABASE_URL_GATEWAYS")
	v.BindEnv("DATABASE_URL_HISTO_USERS")
	v.BindEnv("DATABASE_URL_HISTO_PATIENTS")
	v.BindEnv("DATABASE_URL_HISTO_REPORTS")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SIGNING_KEY")
	v.BindEnv("TOKEN_TTL_MINUTES")
	v.BindEnv("DEFAULT_TENANT")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("DEVICE_ACCESS_TOKEN")
	v.BindEnv("RENDER_SERVICE_URL")
	v.BindEnv("VOICE_SERVICE_URL")
	v.BindEnv("VOICE_API_KEY")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.IsDev() && cfg.JWTSigningKey == "" {
		log.Println("WARNING: JWT_SIGNING_KEY is not set; using an insecure development key.")
		log.Println("WARNING: Set ENV=production and JWT_SIGNING_KEY before deploying.")
		cfg.JWTSigningKey = "dev-signing-key-do-not-use-in-production"
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DatabaseURLs returns the connection URL for every domain database, keyed by
// domain name. Explicit DATABASE_URL_* values win; otherwise the URL is
// composed from the shared Postgres settings plus any per-database
// POSTGRES_HOST_*/POSTGRES_DB_* overrides, defaulting to the conventional
// database name for the domain.
func (c *Config) DatabaseURLs() map[string]string {
	return map[string]string{
		"users":          c.composeURL(c.DatabaseURLUsers, c.PostgresHostUsers, fallback(c.PostgresDBUsers, "iot_users")),
		"orders":         c.composeURL(c.DatabaseURLOrders, c.PostgresHostOrders, fallback(c.PostgresDBOrders, "iot_orders")),
		"clients":        c.composeURL(c.DatabaseURLClients, c.PostgresHostClients, fallback(c.PostgresDBClients, "iot_clients")),
		"devices":        c.composeURL(c.DatabaseURLDevices, c.PostgresHostDevices, fallback(c.PostgresDBDevices, "iot_devices")),
		"gateways":       c.composeURL(c.DatabaseURLGateways, c.PostgresHostGateways, fallback(c.PostgresDBGateways, "iot_gateways")),
		"histo_users":    c.composeURL(c.DatabaseURLHistoUsers, c.PostgresHostHistoUsers, fallback(c.PostgresDBHistoUsers, "histo_users")),
		"histo_patients": c.composeURL(c.DatabaseURLHistoPatients, c.PostgresHostHistoPatients, fallback(c.PostgresDBHistoPatients, "histo_patients")),
		"histo_reports":  c.composeURL(c.DatabaseURLHistoReports, c.PostgresHostHistoReports, fallback(c.PostgresDBHistoReports, "histo_reports")),
	}
}

func (c *Config) composeURL(explicit, host, dbName string) string {
	if explicit != "" {
		return explicit
	}
	if host == "" {
		host = c.PostgresHost
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		c.PostgresUser, c.PostgresPassword, host, c.PostgresPort, dbName)
}

func fallback(override, def string) string {
	if override != "" {
		return override
	}
	return def
}

// Validate checks that the configuration is safe to run. Production requires
// a real signing key; the token TTL and rate limit settings must be sane in
// every mode.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.JWTSigningKey == "" {
			return fmt.Errorf("JWT_SIGNING_KEY is required in production")
		}
		if c.JWTSigningKey == "dev-signing-key-do-not-use-in-production" {
			return fmt.Errorf("JWT_SIGNING_KEY must not be the development default in production")
		}
	}
	if c.TokenTTLMinutes <= 0 {
		return fmt.Errorf("TOKEN_TTL_MINUTES must be positive, got %d", c.TokenTTLMinutes)
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive, got %g", c.RateLimitRPS)
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive, got %d", c.RateLimitBurst)
	}
	return nil
}
