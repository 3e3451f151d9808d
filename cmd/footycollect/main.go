// Package main is the entry point of the FootyCollect service.
// It initializes the Kratos application with the catalog HTTP server and the
// collection scrape scheduler.
package main

import (
	"flag"
	"os"

	"FootyCollect/internal/conf"
	zapLogger "FootyCollect/pkg/log"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/tracing"
	"github.com/go-kratos/kratos/v2/transport/http"

	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name = "footycollect"
	// Version is the version of the compiled software.
	Version string
	// flagconf is the config flag.
	flagconf string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml (empty: environment only)")
}

func newApp(logger log.Logger, hs *http.Server, cs *collectionScheduler) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(
			hs,
			cs,
		),
	)
}

func main() {
	flag.Parse()

	// Viper: environment > config file > defaults, validated
	bc, err := conf.NewBootstrap(flagconf)
	if err != nil {
		// Use fallback logger before Zap is initialized
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLog, err := zapLogger.NewZapLogger(bc.Log)
	if err != nil {
		log.Fatalf("failed to initialize zap logger: %v", err)
	}
	defer func() { _ = zapLog.Sync() }()

	logger := zapLogger.NewKratosAdapter(zapLog)
	logger = log.With(logger,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
		"trace.id", tracing.TraceID(),
		"span.id", tracing.SpanID(),
	)

	zapLogger.NewLogHelper(logger).Startup("FootyCollect service starting",
		"http.addr", bc.Server.HTTP.Addr,
		"database.driver", bc.Data.Database.Driver,
		"fkapi.base_url", bc.Fkapi.BaseURL,
		"fkapi.breaker_mode", bc.Fkapi.Breaker.Mode,
		"ratelimit.enabled", bc.RateLimit.Enabled,
		"log.level", bc.Log.Level,
		"log.format", bc.Log.Format,
		"log.env", bc.Log.Env,
		"log.output_file", bc.Log.OutputFile,
	)

	app, cleanup, err := wireApp(bc, logger)
	if err != nil {
		log.NewHelper(logger).Errorf("failed to wire application: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	// start and wait for stop signal
	if err := app.Run(); err != nil {
		log.NewHelper(logger).Errorf("application stopped with error: %v", err)
	}
}
