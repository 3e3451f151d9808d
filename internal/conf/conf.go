package conf

import (
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Breaker modes.
const (
	BreakerModeLocal  = "local"
	BreakerModeShared = "shared"
)

// Database drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Bootstrap is the root configuration.
type Bootstrap struct {
	Server    *Server    `json:"server"`
	Data      *Data      `json:"data"`
	Fkapi     *Fkapi     `json:"fkapi"`
	RateLimit *RateLimit `json:"ratelimit"`
	Jobs      *Jobs      `json:"jobs"`
	Log       *Log       `json:"log"`
}

// Server configures the HTTP listener.
type Server struct {
	HTTP *ServerHTTP `json:"http"`
}

type ServerHTTP struct {
	Network string        `json:"network"`
	Addr    string        `json:"addr"`
	Timeout time.Duration `json:"timeout"`
}

// Data configures the stores.
type Data struct {
	Database *Database `json:"database"`
	Redis    *Redis    `json:"redis"`
}

type Database struct {
	// Driver is "mysql" or "sqlite".
	Driver string `json:"driver"`
	Source string `json:"source"`
}

// Redis accepts either a redis:// URL or a bare address.
type Redis struct {
	URL          string        `json:"url"`
	Addr         string        `json:"addr"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// Fkapi configures the FootballKitArchive client. RateLimit is the upstream
// request budget per minute shared by all workers; zero disables it.
type Fkapi struct {
	BaseURL    string        `json:"base_url"`
	APIKey     string        `json:"api_key"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	CacheTTL   time.Duration `json:"cache_ttl"`
	StaleTTL   time.Duration `json:"stale_ttl"`
	RateLimit  int           `json:"rate_limit"`
	ProxyURL   string        `json:"proxy_url"`
	Breaker    *FkapiBreaker `json:"breaker"`
}

type FkapiBreaker struct {
	FailureThreshold int           `json:"failure_threshold"`
	Timeout          time.Duration `json:"timeout"`
	Mode             string        `json:"mode"`
}

// RateLimit configures the inbound per-IP limiter.
type RateLimit struct {
	Enabled  bool          `json:"enabled"`
	Requests int           `json:"requests"`
	Window   time.Duration `json:"window"`
}

type Jobs struct {
	CollectionScrape *CollectionScrape `json:"collection_scrape"`
}

// CollectionScrape schedules upstream scrapes of FKA user collections.
type CollectionScrape struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
	UserIDs  []int  `json:"user_ids"`
}

type Log struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	Env        string `json:"env"`
	OutputFile string `json:"output_file"`
}

// Validate implements validation.Validatable.
func (b Bootstrap) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Server, validation.Required),
		validation.Field(&b.Data, validation.Required),
		validation.Field(&b.Fkapi, validation.Required),
		validation.Field(&b.RateLimit),
		validation.Field(&b.Jobs),
		validation.Field(&b.Log, validation.Required),
	)
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.HTTP, validation.Required),
	)
}

func (h ServerHTTP) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Addr, validation.Required),
		validation.Field(&h.Timeout, validation.Min(time.Duration(0))),
	)
}

func (d Data) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Database, validation.Required),
		validation.Field(&d.Redis),
	)
}

func (d Database) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(DriverMySQL, DriverSQLite)),
		validation.Field(&d.Source, validation.Required),
	)
}

func (r Redis) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.URL, validation.By(validateURL)),
		validation.Field(&r.DB, validation.Min(0)),
	)
}

func (f Fkapi) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.BaseURL, validation.Required),
		validation.Field(&f.APIKey, validation.Required),
		validation.Field(&f.MaxRetries, validation.Min(1)),
		validation.Field(&f.RateLimit, validation.Min(0)),
		validation.Field(&f.ProxyURL, validation.By(validateURL)),
		validation.Field(&f.Breaker, validation.Required),
	)
}

func (b FkapiBreaker) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.FailureThreshold, validation.Min(1)),
		validation.Field(&b.Mode, validation.Required, validation.In(BreakerModeLocal, BreakerModeShared)),
	)
}

func (r RateLimit) Validate() error {
	if !r.Enabled {
		return nil
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Requests, validation.Required, validation.Min(1)),
		validation.Field(&r.Window, validation.Required),
	)
}

func (j Jobs) Validate() error {
	return validation.ValidateStruct(&j,
		validation.Field(&j.CollectionScrape),
	)
}

func (c CollectionScrape) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Schedule, validation.Required),
		validation.Field(&c.UserIDs, validation.Required, validation.Each(validation.Min(1))),
	)
}

func (l Log) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.Required, validation.In("debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("json", "console")),
	)
}

func validateURL(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return validation.NewError("validation_invalid_url", "must be a valid URL with scheme and host")
	}
	return nil
}
