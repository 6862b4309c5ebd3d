package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// maxArrInstances caps the numbered instance blocks scanned per *arr kind.
const maxArrInstances = 8

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Logging LoggingConfig

	// Debug enables verbose logging.
	Debug bool
	// StatusEnabled toggles the /api/status connectivity probe endpoint.
	StatusEnabled bool

	Tautulli  ServiceConfig
	Overseerr ServiceConfig
	Plex      PlexConfig

	Radarr []ArrInstance
	Sonarr []ArrInstance
	Lidarr []ArrInstance
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string
	Port int
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string
	Format string // "console" or "json"
	Path   string // directory for log files; empty disables file output
}

// ServiceConfig is a base URL + API key pair for a single-instance service.
type ServiceConfig struct {
	URL    string
	APIKey string
}

// Configured reports whether both URL and API key are set.
func (s ServiceConfig) Configured() bool {
	return s.URL != "" && s.APIKey != ""
}

// PlexConfig holds the optional Plex Media Server integration.
type PlexConfig struct {
	URL   string
	Token string
}

// Configured reports whether the Plex integration is usable.
func (p PlexConfig) Configured() bool {
	return p.URL != "" && p.Token != ""
}

// ArrInstance is one configured deployment of a Radarr/Sonarr/Lidarr manager.
type ArrInstance struct {
	URL    string
	APIKey string
	Name   string
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from the environment. An optional .env file is
// loaded first so deployments can keep credentials out of the unit file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		// Best effort: a .env in the working directory is optional.
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("HOST"),
			Port: v.GetInt("PORT"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			Path:   v.GetString("LOG_PATH"),
		},
		Debug:         v.GetBool("DEBUG"),
		StatusEnabled: v.GetBool("STAT"),
		Tautulli: ServiceConfig{
			URL:    trimURL(v.GetString("TAUTULLI_URL")),
			APIKey: v.GetString("TAUTULLI_API_KEY"),
		},
		Overseerr: ServiceConfig{
			URL:    trimURL(v.GetString("OVERSEERR_URL")),
			APIKey: v.GetString("OVERSEERR_API_KEY"),
		},
		Plex: PlexConfig{
			URL:   trimURL(v.GetString("PLEX_URL")),
			Token: v.GetString("PLEX_TOKEN"),
		},
		Radarr: loadArrInstances(v, "RADARR"),
		Sonarr: loadArrInstances(v, "SONARR"),
		Lidarr: loadArrInstances(v, "LIDARR"),
	}

	if cfg.Debug && cfg.Logging.Level == "info" {
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}

// loadArrInstances reads numbered instance blocks (RADARR_1_URL,
// RADARR_1_API_KEY, RADARR_1_NAME, RADARR_2_URL, ...). Instances with a blank
// URL or API key are skipped and excluded from every fan-out.
func loadArrInstances(v *viper.Viper, prefix string) []ArrInstance {
	var instances []ArrInstance
	for i := 1; i <= maxArrInstances; i++ {
		url := trimURL(v.GetString(fmt.Sprintf("%s_%d_URL", prefix, i)))
		key := v.GetString(fmt.Sprintf("%s_%d_API_KEY", prefix, i))
		name := v.GetString(fmt.Sprintf("%s_%d_NAME", prefix, i))
		if name == "" {
			name = fmt.Sprintf("%s%s %d", prefix[:1], strings.ToLower(prefix[1:]), i)
		}
		if url == "" || key == "" {
			continue
		}
		instances = append(instances, ArrInstance{URL: url, APIKey: key, Name: name})
	}
	return instances
}

func trimURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 5000)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LOG_PATH", "")

	v.SetDefault("DEBUG", false)
	v.SetDefault("STAT", true)

	v.SetDefault("TAUTULLI_URL", "http://localhost:8181")
	v.SetDefault("OVERSEERR_URL", "http://localhost:5055")
}
