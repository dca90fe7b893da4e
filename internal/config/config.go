package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the LTI bridge.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	DatabaseURL       string
	RedisURL          string
	NATSURL           string
	NATSSubject       string
	JWTSecret         string
	HandoffTTL        time.Duration
	FrontendURL       string
	LTIKey            string
	LTIPrivateKeyFile string
	LTISessionTTL     time.Duration
	LTIStateTTL       time.Duration
	LTISecureCookies  bool
	Platform          PlatformConfig
	Grades            GradesConfig
}

// PlatformConfig is the fixed LMS registration installed at startup.
type PlatformConfig struct {
	URL                    string
	Name                   string
	ClientID               string
	AuthenticationEndpoint string
	AccessTokenEndpoint    string
	JWKSURL                string
}

// GradesConfig tunes the grade reconciliation workflow.
type GradesConfig struct {
	LineItemLabel     string
	LineItemTag       string
	LookupConcurrency int
	SyncRateLimit     int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SAE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Unprefixed names kept for existing deployments.
	_ = v.BindEnv("app.port", "SAE_APP_PORT", "PORT")
	_ = v.BindEnv("database.url", "SAE_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("lti.key", "SAE_LTI_KEY", "LTI_KEY")

	v.SetDefault("app.name", "SAE LTI")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "3005")
	v.SetDefault("nats.subject", "sae.grades.synced")
	v.SetDefault("handoff.ttl", "1h")
	v.SetDefault("frontend.url", "https://sae2025.netlify.app")
	v.SetDefault("lti.session_ttl", "2h")
	v.SetDefault("lti.state_ttl", "10m")
	v.SetDefault("lti.secure_cookies", true)
	v.SetDefault("platform.url", "https://ecampusuca.moodlecloud.com")
	v.SetDefault("platform.name", "EcampusUCA")
	v.SetDefault("platform.client_id", "d8Af3rpbiUdOneX")
	v.SetDefault("platform.auth_endpoint", "https://ecampusuca.moodlecloud.com/mod/lti/auth.php")
	v.SetDefault("platform.token_endpoint", "https://ecampusuca.moodlecloud.com/mod/lti/token.php")
	v.SetDefault("platform.jwks_url", "https://ecampusuca.moodlecloud.com/mod/lti/certs.php")
	v.SetDefault("grades.line_item_label", "Nota automática")
	v.SetDefault("grades.line_item_tag", "autograde")
	v.SetDefault("grades.lookup_concurrency", 4)
	v.SetDefault("grades.sync_rate_limit", 10)

	handoffTTL, err := parseDuration(v, "handoff.ttl", time.Hour)
	if err != nil {
		return Config{}, err
	}
	sessionTTL, err := parseDuration(v, "lti.session_ttl", 2*time.Hour)
	if err != nil {
		return Config{}, err
	}
	stateTTL, err := parseDuration(v, "lti.state_ttl", 10*time.Minute)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		NATSSubject:       v.GetString("nats.subject"),
		JWTSecret:         v.GetString("jwt.secret"),
		HandoffTTL:        handoffTTL,
		FrontendURL:       strings.TrimRight(v.GetString("frontend.url"), "/"),
		LTIKey:            v.GetString("lti.key"),
		LTIPrivateKeyFile: v.GetString("lti.private_key_file"),
		LTISessionTTL:     sessionTTL,
		LTIStateTTL:       stateTTL,
		LTISecureCookies:  v.GetBool("lti.secure_cookies"),
		Platform: PlatformConfig{
			URL:                    strings.TrimRight(v.GetString("platform.url"), "/"),
			Name:                   v.GetString("platform.name"),
			ClientID:               v.GetString("platform.client_id"),
			AuthenticationEndpoint: v.GetString("platform.auth_endpoint"),
			AccessTokenEndpoint:    v.GetString("platform.token_endpoint"),
			JWKSURL:                v.GetString("platform.jwks_url"),
		},
		Grades: GradesConfig{
			LineItemLabel:     v.GetString("grades.line_item_label"),
			LineItemTag:       v.GetString("grades.line_item_tag"),
			LookupConcurrency: v.GetInt("grades.lookup_concurrency"),
			SyncRateLimit:     v.GetInt("grades.sync_rate_limit"),
		},
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.LTIKey == "" {
		return Config{}, fmt.Errorf("lti key must be provided")
	}
	if cfg.IsProduction() && cfg.LTIPrivateKeyFile == "" {
		return Config{}, fmt.Errorf("lti private key file must be provided in production")
	}

	if cfg.Grades.LookupConcurrency <= 0 {
		cfg.Grades.LookupConcurrency = 4
	}
	if cfg.Grades.SyncRateLimit <= 0 {
		cfg.Grades.SyncRateLimit = 10
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return fallback, nil
	}

	return d, nil
}
