// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables.
package conf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// NewBootstrap loads the configuration from configPath (optional), the
// environment and the defaults, then validates it.
//
// Configuration priority: Environment variables > Config file > Defaults
//
// Environment variables use the FOOTYCOLLECT_ prefix with dots replaced by
// underscores (FOOTYCOLLECT_FKAPI_TIMEOUT). The deployment names below are
// accepted as well:
//   - FKA_API_IP: upstream host or URL (fkapi.base_url)
//   - API_KEY: upstream API key
//   - REDIS_URL: redis://[:password@]host:port/db
//   - DATABASE_URL: database DSN
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("FOOTYCOLLECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("fkapi.base_url", "FOOTYCOLLECT_FKAPI_BASE_URL", "FKA_API_IP")
	_ = v.BindEnv("fkapi.api_key", "FOOTYCOLLECT_FKAPI_API_KEY", "API_KEY")
	_ = v.BindEnv("data.redis.url", "FOOTYCOLLECT_DATA_REDIS_URL", "REDIS_URL")
	_ = v.BindEnv("data.database.source", "FOOTYCOLLECT_DATA_DATABASE_SOURCE", "DATABASE_URL")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	userIDs, err := intSlice(v, "jobs.collection_scrape.user_ids")
	if err != nil {
		return nil, err
	}

	bc := &Bootstrap{
		Server: &Server{
			HTTP: &ServerHTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: v.GetDuration("server.http.timeout"),
			},
		},
		Data: &Data{
			Database: &Database{
				Driver: v.GetString("data.database.driver"),
				Source: v.GetString("data.database.source"),
			},
			Redis: &Redis{
				URL:          v.GetString("data.redis.url"),
				Addr:         v.GetString("data.redis.addr"),
				Password:     v.GetString("data.redis.password"),
				DB:           v.GetInt("data.redis.db"),
				ReadTimeout:  v.GetDuration("data.redis.read_timeout"),
				WriteTimeout: v.GetDuration("data.redis.write_timeout"),
			},
		},
		Fkapi: &Fkapi{
			BaseURL:    v.GetString("fkapi.base_url"),
			APIKey:     v.GetString("fkapi.api_key"),
			Timeout:    v.GetDuration("fkapi.timeout"),
			MaxRetries: v.GetInt("fkapi.max_retries"),
			CacheTTL:   v.GetDuration("fkapi.cache_ttl"),
			StaleTTL:   v.GetDuration("fkapi.stale_ttl"),
			RateLimit:  v.GetInt("fkapi.rate_limit"),
			ProxyURL:   v.GetString("fkapi.proxy_url"),
			Breaker: &FkapiBreaker{
				FailureThreshold: v.GetInt("fkapi.breaker.failure_threshold"),
				Timeout:          v.GetDuration("fkapi.breaker.timeout"),
				Mode:             strings.ToLower(v.GetString("fkapi.breaker.mode")),
			},
		},
		RateLimit: &RateLimit{
			Enabled:  v.GetBool("ratelimit.enabled"),
			Requests: v.GetInt("ratelimit.requests"),
			Window:   v.GetDuration("ratelimit.window"),
		},
		Jobs: &Jobs{
			CollectionScrape: &CollectionScrape{
				Enabled:  v.GetBool("jobs.collection_scrape.enabled"),
				Schedule: v.GetString("jobs.collection_scrape.schedule"),
				UserIDs:  userIDs,
			},
		},
		Log: &Log{
			Level:      strings.ToLower(v.GetString("log.level")),
			Format:     strings.ToLower(v.GetString("log.format")),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
	}

	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8000")
	v.SetDefault("server.http.timeout", 2*time.Minute)

	v.SetDefault("data.database.driver", DriverSQLite)
	v.SetDefault("data.database.source", "footycollect.db")

	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.db", 0)
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	// fkapi.base_url and fkapi.api_key have no defaults
	v.SetDefault("fkapi.timeout", 30*time.Second)
	v.SetDefault("fkapi.max_retries", 3)
	v.SetDefault("fkapi.cache_ttl", time.Hour)
	v.SetDefault("fkapi.stale_ttl", 24*time.Hour)
	v.SetDefault("fkapi.rate_limit", 100)
	v.SetDefault("fkapi.breaker.failure_threshold", 5)
	v.SetDefault("fkapi.breaker.timeout", 60*time.Second)
	v.SetDefault("fkapi.breaker.mode", BreakerModeLocal)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests", 100)
	v.SetDefault("ratelimit.window", time.Hour)

	v.SetDefault("jobs.collection_scrape.enabled", false)
	v.SetDefault("jobs.collection_scrape.schedule", "0 0 3 * * *")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks the loaded configuration. All violations are reported in
// a single error.
func Validate(bc *Bootstrap) error {
	if bc == nil {
		return errors.New("configuration is nil")
	}
	if err := bc.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// intSlice reads a list of integers given either as a YAML list or as a
// comma separated string from the environment.
func intSlice(v *viper.Viper, key string) ([]int, error) {
	raw := v.Get(key)
	s, ok := raw.(string)
	if !ok {
		return v.GetIntSlice(key), nil
	}

	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid integer %q", key, part)
		}
		out = append(out, n)
	}
	return out, nil
}
