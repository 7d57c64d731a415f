// Package config loads service configuration from the environment, an
// optional .env file and an optional YAML route table.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// GatewayConfig configures the API gateway binary.
type GatewayConfig struct {
	Port        int    `env:"API_GATEWAY_PORT,default=8080"`
	MetricsPort int    `env:"PROMETHEUS_METRICS_PORT,default=9090"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	LogFormat   string `env:"LOG_FORMAT,default=json"`
	Env         string `env:"ENV,default=production"`

	CORSOrigins []string `env:"CORS_ORIGINS,default=http://localhost:3000;http://localhost:8080"`

	ProxySecretKey string `env:"PROXY_SECRET_KEY,default=dev_secret_key"`

	EnableRateLimiting bool          `env:"ENABLE_RATE_LIMITING,default=true"`
	RateLimitRedisURL  string        `env:"RATE_LIMIT_REDIS_URL"`
	DefaultRateLimit   int           `env:"DEFAULT_RATE_LIMIT,default=100"`
	RateLimitPeriod    time.Duration `env:"DEFAULT_RATE_LIMIT_PERIOD,default=60s"`

	ProxyTimeout   time.Duration `env:"PROXY_TIMEOUT,default=30s"`
	RoutesFile     string        `env:"GATEWAY_ROUTES_FILE"`
	AuthServiceURL string        `env:"AUTH_SERVICE_URL,default=http://auth-service:8000"`
	ReportsURL     string        `env:"REPORTS_SERVICE_URL,default=http://reports-service:8001"`
	AlertsURL      string        `env:"ALERTS_SERVICE_URL,default=http://alerts-service:8002"`
	MapURL         string        `env:"MAP_SERVICE_URL,default=http://map-service:8003"`
	AIURL          string        `env:"AI_SERVICE_URL,default=http://ai-service:8004"`
	AuditURL       string        `env:"AUDIT_SERVICE_URL,default=http://audit-service:8005"`
}

// AuthConfig configures the auth service binary.
type AuthConfig struct {
	Port      int    `env:"SERVER_PORT,default=8000"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	SecretKey          string        `env:"SECRET_KEY,default=changeme"`
	JWTPrivateKeyFile  string        `env:"JWT_PRIVATE_KEY_FILE"`
	JWTPublicKeyFile   string        `env:"JWT_PUBLIC_KEY_FILE"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL,default=60m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL,default=168h"`
	ProxySecretKey     string        `env:"PROXY_SECRET_KEY,default=dev_secret_key"`
	AllowDirectAccess  bool          `env:"INSECURE_DIRECT_ACCESS,default=false"`
	AuditLogFile       string        `env:"AUTH_AUDIT_LOG_FILE"`
	AuditLogMaxEntries int           `env:"AUTH_AUDIT_LOG_MAX,default=1000"`

	Database DatabaseConfig
}

// ReportsConfig configures the reports service binary.
type ReportsConfig struct {
	Port      int    `env:"SERVER_PORT,default=8001"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	ProxySecretKey    string `env:"PROXY_SECRET_KEY,default=dev_secret_key"`
	AllowDirectAccess bool   `env:"INSECURE_DIRECT_ACCESS,default=false"`

	AuthServiceURL     string `env:"AUTH_SERVICE_URL,default=http://auth-service:8000"`
	AIServiceURL       string `env:"AI_SERVICE_URL"`
	AIAnalysisEndpoint string `env:"AI_ANALYSIS_ENDPOINT,default=/analyze"`
	UploadsPath        string `env:"UPLOADS_PATH,default=uploads"`

	Database DatabaseConfig
}

// DatabaseConfig holds Postgres connection settings. The DSN is assembled from
// the POSTGRES_* variables when not given explicitly.
type DatabaseConfig struct {
	DSN             string        `env:"DATABASE_URL"`
	Host            string        `env:"POSTGRES_HOST,default=localhost"`
	Port            int           `env:"POSTGRES_PORT,default=5432"`
	User            string        `env:"POSTGRES_USER,default=postgres"`
	Password        string        `env:"POSTGRES_PASSWORD,default=postgres"`
	Name            string        `env:"POSTGRES_DB,default=postgres"`
	SSLMode         string        `env:"POSTGRES_SSLMODE,default=disable"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m"`
}

// ConnString returns the Postgres connection string.
func (c DatabaseConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// LoadGateway loads the gateway configuration.
func LoadGateway() (*GatewayConfig, error) {
	loadDotenv()
	var cfg GatewayConfig
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode gateway config: %w", err)
	}
	return &cfg, nil
}

// LoadAuth loads the auth service configuration.
func LoadAuth() (*AuthConfig, error) {
	loadDotenv()
	var cfg AuthConfig
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode auth config: %w", err)
	}
	return &cfg, nil
}

// LoadReports loads the reports service configuration.
func LoadReports() (*ReportsConfig, error) {
	loadDotenv()
	var cfg ReportsConfig
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode reports config: %w", err)
	}
	return &cfg, nil
}

// loadDotenv loads a .env file when present. Missing files are fine.
func loadDotenv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
}
