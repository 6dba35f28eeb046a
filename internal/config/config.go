// Package config loads the dashboard settings once at startup. The Config
// value is never mutated afterwards; components receive what they need from it.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"panel-dash/internal/model"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "PANELDASH"

// ServerIDs are the backends the bot knows about.
var ServerIDs = []model.ServerID{"srv1", "srv2", "srv3"}

type Config struct {
	Env           string `mapstructure:"env"`
	ListenAddr    string `mapstructure:"listen_addr"`
	DataDir       string `mapstructure:"data_dir"`
	DatabasePath  string `mapstructure:"database_path"`
	SecretFile    string `mapstructure:"secret_file"`
	SessionSecret string `mapstructure:"session_secret"`
	SecureCookies bool   `mapstructure:"secure_cookies"`

	// TrustedProxies may set X-Forwarded-For. Empty means the peer address
	// is the client address.
	TrustedProxies []string `mapstructure:"trusted_proxies"`

	Owners []string `mapstructure:"owners"`

	ServerMap map[string]model.Server `mapstructure:"servers"`

	Bot struct {
		Token     string `mapstructure:"token"`
		WebAppURL string `mapstructure:"web_app_url"`
		Name      string `mapstructure:"name"`
		Version   string `mapstructure:"version"`
		OwnerName string `mapstructure:"owner_name"`
	} `mapstructure:"bot"`

	RateLimit struct {
		LoginMax    int           `mapstructure:"login_max"`
		LoginWindow time.Duration `mapstructure:"login_window"`
		APIMax      int           `mapstructure:"api_max"`
		APIWindow   time.Duration `mapstructure:"api_window"`
	} `mapstructure:"ratelimit"`

	Lockout struct {
		MaxAttempts int           `mapstructure:"max_attempts"`
		Cooldown    time.Duration `mapstructure:"cooldown"`
	} `mapstructure:"lockout"`

	Provisioning struct {
		Timeout     time.Duration `mapstructure:"timeout"`
		EmailDomain string        `mapstructure:"email_domain"`
	} `mapstructure:"provisioning"`

	Audit struct {
		Retention time.Duration `mapstructure:"retention"`
	} `mapstructure:"audit"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "prod")
	v.SetDefault("listen_addr", ":5000")
	v.SetDefault("data_dir", "database")
	v.SetDefault("database_path", "data/paneldash.db")
	v.SetDefault("secret_file", "data/.sk")
	v.SetDefault("session_secret", "")
	v.SetDefault("secure_cookies", false)
	v.SetDefault("owners", []string{})
	v.SetDefault("trusted_proxies", []string{})

	for i, id := range ServerIDs {
		key := "servers." + string(id)
		v.SetDefault(key+".name", fmt.Sprintf("Server %d", i+1))
		v.SetDefault(key+".domain", "-")
		v.SetDefault(key+".api_key", "-")
	}

	v.SetDefault("bot.token", "")
	v.SetDefault("bot.web_app_url", "")
	v.SetDefault("bot.name", "Bot")
	v.SetDefault("bot.version", "1.0")
	v.SetDefault("bot.owner_name", "Owner")

	v.SetDefault("ratelimit.login_max", 10)
	v.SetDefault("ratelimit.login_window", 15*time.Minute)
	v.SetDefault("ratelimit.api_max", 30)
	v.SetDefault("ratelimit.api_window", time.Minute)

	v.SetDefault("lockout.max_attempts", 5)
	v.SetDefault("lockout.cooldown", 15*time.Minute)

	v.SetDefault("provisioning.timeout", 10*time.Second)
	v.SetDefault("provisioning.email_domain", "panel.com")

	v.SetDefault("audit.retention", 30*24*time.Hour)
	v.SetDefault("metrics.enabled", false)
}

// Load reads an optional .env file, an optional YAML file at path and
// PANELDASH_* environment variables, in increasing precedence.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	c.Owners = normalizeOwners(c.Owners)
	for id, srv := range c.ServerMap {
		srv.ID = model.ServerID(id)
		c.ServerMap[id] = srv
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the invariants the rest of the program relies on.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: data_dir is required")
	}
	for _, id := range ServerIDs {
		if _, ok := c.ServerMap[string(id)]; !ok {
			return fmt.Errorf("config: server %s missing", id)
		}
	}
	for key := range c.ServerMap {
		if !slices.Contains(ServerIDs, model.ServerID(key)) {
			return fmt.Errorf("config: unknown server %s", key)
		}
	}
	if c.RateLimit.LoginMax <= 0 || c.RateLimit.APIMax <= 0 {
		return errors.New("config: rate limits must be positive")
	}
	if c.RateLimit.LoginWindow <= 0 || c.RateLimit.APIWindow <= 0 {
		return errors.New("config: rate limit windows must be positive")
	}
	if c.Lockout.MaxAttempts <= 0 || c.Lockout.Cooldown <= 0 {
		return errors.New("config: lockout settings must be positive")
	}
	if c.Provisioning.Timeout <= 0 {
		return errors.New("config: provisioning timeout must be positive")
	}
	for _, o := range c.Owners {
		if !isDigits(o) {
			return fmt.Errorf("config: owner %q is not a Telegram ID", o)
		}
	}
	return nil
}

// Servers returns every known backend in srv1, srv2, srv3 order.
func (c Config) Servers() []model.Server {
	out := make([]model.Server, 0, len(c.ServerMap))
	for _, srv := range c.ServerMap {
		out = append(out, srv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Server looks up a backend by id.
func (c Config) Server(id model.ServerID) (model.Server, bool) {
	srv, ok := c.ServerMap[string(id)]
	return srv, ok
}

func normalizeOwners(in []string) []string {
	var out []string
	for _, o := range in {
		// Env values may arrive as one comma separated string.
		for _, part := range strings.Split(o, ",") {
			part = strings.TrimSpace(part)
			if part != "" && !slices.Contains(out, part) {
				out = append(out, part)
			}
		}
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
