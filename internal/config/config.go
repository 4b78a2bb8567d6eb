package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/jengzang/whisker-watch-go/internal/tiles"
)

// Config holds application configuration
type Config struct {
	Port   string
	DBPath string

	// StateBackend selects where the map viewport is persisted: "sqlite" or "redis"
	StateBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TileStyle     string
	TileUserAgent string
	TileTimeout   time.Duration
	TileURLs      map[string]TileURLs

	MinZoom float64
	MaxZoom float64

	SessionTTL     time.Duration
	EventRateLimit int // event requests per session per second
	TileCacheSize  int
}

// TileURLs overrides a basemap's sources
type TileURLs struct {
	Primary  string
	Fallback string
}

// Load reads configuration from the environment, after loading .env if present
func Load() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Port:          getEnv("PORT", ":8080"),
		DBPath:        getEnv("DB_PATH", "./data/whisker-watch.db"),
		StateBackend:  strings.ToLower(getEnv("STATE_BACKEND", "sqlite")),
		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		TileStyle:     strings.ToLower(getEnv("TILE_STYLE", tiles.StyleDark)),
		TileUserAgent: getEnv("TILE_USER_AGENT", "whisker-watch/1.0"),
		TileTimeout:   getEnvDuration("TILE_TIMEOUT", 10*time.Second),
		TileURLs:      make(map[string]TileURLs),

		MinZoom: getEnvFloat("MIN_ZOOM", 5),
		MaxZoom: getEnvFloat("MAX_ZOOM", 17),

		SessionTTL:     getEnvDuration("SESSION_TTL", 15*time.Minute),
		EventRateLimit: getEnvInt("EVENT_RATE_LIMIT", 120),
		TileCacheSize:  getEnvInt("TILE_CACHE_SIZE", tiles.DefaultCapacity),
	}

	for _, style := range []string{tiles.StyleDark, tiles.StyleLight, tiles.StyleSatellite} {
		prefix := "TILE_" + strings.ToUpper(style)
		cfg.TileURLs[style] = TileURLs{
			Primary:  os.Getenv(prefix + "_URL"),
			Fallback: os.Getenv(prefix + "_FALLBACK_URL"),
		}
	}
	if cfg.MaxZoom < cfg.MinZoom {
		cfg.MinZoom, cfg.MaxZoom = cfg.MaxZoom, cfg.MinZoom
	}
	return cfg
}

// Basemaps returns the built-in basemaps with any URL overrides applied
func (c *Config) Basemaps() map[string]tiles.Basemap {
	basemaps := tiles.DefaultBasemaps()
	for style, urls := range c.TileURLs {
		b, ok := basemaps[style]
		if !ok {
			continue
		}
		if urls.Primary != "" {
			b.Primary = tiles.Source{Name: style + "-custom", URLTemplate: urls.Primary}
		}
		if urls.Fallback != "" {
			b.Fallback = tiles.Source{Name: style + "-custom-fallback", URLTemplate: urls.Fallback}
		}
		basemaps[style] = b
	}
	return basemaps
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
