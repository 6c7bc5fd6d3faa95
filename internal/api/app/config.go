package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/LiaiZenApp/liazen-api/pkg/jwtx"
	"github.com/LiaiZenApp/liazen-api/pkg/observe"
)

// Verification modes selected by AUTH_MODE.
const (
	AuthModeExternal = "external"
	AuthModeMock     = "mock"
)

type Config struct {
	Env                 string        `env:"ENV,default=development"` // development, test, staging, production
	Port                int           `env:"PORT,default=8000"`       // HTTP server port
	LogLevel            string        `env:"LOG_LEVEL,default=info"`  // debug, info, warn, error
	LogFormat           string        `env:"LOG_FORMAT,default=json"` // json, text
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD,default=10s"`
	TrustProxyHeaders   bool          `env:"TRUST_PROXY_HEADERS,default=false"` // Use X-Forwarded-For for client IPs

	AuthMode         string        `env:"AUTH_MODE,default=external"` // external, mock
	Auth0Domain      string        `env:"AUTH0_DOMAIN"`
	Auth0Audience    string        `env:"AUTH0_AUDIENCE"`
	Auth0Issuer      string        `env:"AUTH0_ISSUER"`                 // Defaults to https://{AUTH0_DOMAIN}/
	JWKSURL          string        `env:"JWKS_URL"`                     // Defaults to the domain's well-known path
	JWKSDiscovery    bool          `env:"JWKS_DISCOVERY,default=false"` // Resolve jwks_uri through OIDC discovery
	JWKSCacheTTL     time.Duration `env:"JWKS_CACHE_TTL,default=15m"`
	JWKSMaxStale     time.Duration `env:"JWKS_MAX_STALE,default=1h"`
	JWKSFetchTimeout time.Duration `env:"JWKS_FETCH_TIMEOUT,default=5s"`
	RolesClaim       string        `env:"ROLES_CLAIM,default=roles"`

	LocalJWTSecret           string `env:"LOCAL_JWT_SECRET"` // Required in production, generated otherwise
	LocalJWTAlgorithm        string `env:"LOCAL_JWT_ALGORITHM,default=HS256"`
	AccessTokenExpireMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES,default=30"`
	RefreshTokenExpireDays   int    `env:"REFRESH_TOKEN_EXPIRE_DAYS,default=7"`

	RateLimitPerMinute      int           `env:"RATELIMIT_PER_MINUTE,default=60"`
	RateLimitPerHour        int           `env:"RATELIMIT_PER_HOUR,default=1000"`
	RateLimitLoginPerMinute int           `env:"RATELIMIT_LOGIN_PER_MINUTE,default=5"`
	RateLimitStore          string        `env:"RATELIMIT_STORE,default=memory"` // memory, redis
	RateLimitSweepInterval  time.Duration `env:"RATELIMIT_SWEEP_INTERVAL,default=1m"`
	RedisAddr               string        `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword           string        `env:"REDIS_PASSWORD"`
	RedisDB                 int           `env:"REDIS_DB,default=0"`

	DBDriver   string `env:"DB_DRIVER,default=sqlite"` // sqlite, postgres
	DBDSN      string `env:"DB_DSN,default=file:liazen.db?_pragma=busy_timeout(5000)"`
	PepperPath string `env:"PEPPER_PATH,default=pepper"`

	BootstrapAdminUsername string `env:"BOOTSTRAP_ADMIN_USERNAME,default=admin"`
	BootstrapAdminPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD"` // Generated and printed once when empty

	MetricsExporter string `env:"METRICS_EXPORTER,default=prometheus"` // prometheus, stdout, none
}

// LoadConfig loads secrets and .env files into the environment, then decodes
// and validates the configuration.
func LoadConfig() (Config, error) {
	LoadEnv()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Production reports whether this is a production deployment.
func (c Config) Production() bool { return jwtx.IsProduction(c.Env) }

// Issuer is the expected iss of provider tokens.
func (c Config) Issuer() string {
	if c.Auth0Issuer != "" {
		return c.Auth0Issuer
	}
	return jwtx.DefaultIssuer(c.Auth0Domain)
}

// AccessTTL and RefreshTTL are the local token lifetimes.
func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpireDays) * 24 * time.Hour
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.ShutdownGracePeriod <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_GRACE_PERIOD must be positive"))
	}

	switch c.AuthMode {
	case AuthModeExternal:
		if c.Auth0Audience == "" {
			errs = append(errs, errors.New("AUTH0_AUDIENCE is required in external mode"))
		}
		if c.Auth0Domain == "" && (c.Auth0Issuer == "" || (c.JWKSURL == "" && !c.JWKSDiscovery)) {
			errs = append(errs, errors.New("AUTH0_DOMAIN, or AUTH0_ISSUER with JWKS_URL or JWKS_DISCOVERY, is required in external mode"))
		}
	case AuthModeMock:
		if c.Production() {
			errs = append(errs, jwtx.ErrMockInProduction)
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_MODE must be external or mock, got %q", c.AuthMode))
	}

	if c.Production() && len(c.LocalJWTSecret) < 32 {
		errs = append(errs, errors.New("LOCAL_JWT_SECRET of at least 32 bytes is required in production"))
	}
	if c.LocalJWTSecret != "" && len(c.LocalJWTSecret) < 32 {
		errs = append(errs, errors.New("LOCAL_JWT_SECRET must be at least 32 bytes"))
	}
	switch c.LocalJWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("LOCAL_JWT_ALGORITHM must be HS256, HS384 or HS512, got %q", c.LocalJWTAlgorithm))
	}
	if c.AccessTokenExpireMinutes <= 0 || c.RefreshTokenExpireDays <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	} else if c.AccessTTL() >= c.RefreshTTL() {
		errs = append(errs, errors.New("access token lifetime must be shorter than refresh token lifetime"))
	}

	if c.RateLimitPerMinute < 0 || c.RateLimitPerHour < 0 || c.RateLimitLoginPerMinute < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}
	switch c.RateLimitStore {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when RATELIMIT_STORE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("RATELIMIT_STORE must be memory or redis, got %q", c.RateLimitStore))
	}

	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver))
	}
	if strings.TrimSpace(c.DBDSN) == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	}

	if err := (observe.Config{ServiceName: serviceName, Exporter: c.MetricsExporter}).Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
