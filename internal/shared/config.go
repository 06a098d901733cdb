package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	DriverMongo  = "mongo"
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	StoreDriver string
	MongoURL    string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration
	CORSOrigins []string
	SeedURL     string
	SeedWorkers int
	SeedClear   bool
}

// Load reads the process environment once, after merging an optional .env file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not read .env")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":"+env("PORT", "8080")),
		MetricsAddr: env("METRICS_ADDR", ""),
		StoreDriver: strings.ToLower(env("STORE_DRIVER", DriverMongo)),
		MongoURL:    env("MONGO_URL", "mongodb://127.0.0.1:27017/wanderlust"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/wanderlust?parseTime=true&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		RedisPass:   env("REDIS_PASSWORD", ""),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		CORSOrigins: list(env("CORS_ORIGINS", "")),
		SeedURL:     env("SEED_URL", ""),
		SeedWorkers: atoi("SEED_WORKERS", 4),
		SeedClear:   env("SEED_CLEAR", "true") != "false",
	}
	switch c.StoreDriver {
	case DriverMongo, DriverMySQL, DriverMemory:
	default:
		log.Warn().Str("driver", c.StoreDriver).Msg("unknown STORE_DRIVER, using mongo")
		c.StoreDriver = DriverMongo
	}
	if c.SeedWorkers <= 0 {
		c.SeedWorkers = 1
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func list(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
