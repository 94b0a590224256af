// Package cmdutil holds setup steps shared by the commands.
package cmdutil

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/pgx-contrib/pgxtrace"
	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/config"
	"github.com/mpapenbr/regatta-scoring-go/pkg/db/postgres"
	"github.com/mpapenbr/regatta-scoring-go/pkg/utils"
)

// AddLogFlags registers the logging flags on cmd
func AddLogFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.SQLLogLevel,
		"sql-log-level",
		"debug",
		"controls the log level for sql methods")
	cmd.Flags().StringVar(&config.LogFormat,
		"log-format",
		"json",
		"controls the log output format (json, text)")
	cmd.Flags().StringVar(&config.LogFilter,
		"log-filter",
		"",
		"zapfilter rules to restrict log output (e.g. 'debug+:processing.* info+:*')")
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger creates the application logger and the sql logger from the
// config values. The application logger becomes the default logger.
func SetupLogger() (logger, sqlLogger *log.Logger) {
	opts := []log.Option{log.WithCaller(true), log.AddCallerSkip(1)}
	if config.LogFilter != "" {
		if filter, err := log.FilterRules(config.LogFilter); err == nil {
			opts = append(opts, filter)
		} else {
			log.Warn("ignoring invalid log filter", log.ErrorField(err))
		}
	}
	switch config.LogFormat {
	case "json":
		logger = log.New(os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel), opts...)
		sqlLogger = log.New(os.Stderr,
			parseLogLevel(config.SQLLogLevel, log.InfoLevel), opts...)
	default:
		logger = log.DevLogger(os.Stderr,
			parseLogLevel(config.LogLevel, log.DebugLevel), opts...)
		sqlLogger = log.DevLogger(os.Stderr,
			parseLogLevel(config.SQLLogLevel, log.InfoLevel), opts...)
	}
	log.ResetDefault(logger)
	return logger, sqlLogger
}

// WaitForServices blocks until the database (and NATS if configured)
// accept connections. Terminates the process on timeout.
func WaitForServices(ctx context.Context) {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	err = utils.WaitForAll(ctx, timeout,
		utils.ExtractFromDBURL(config.DB),
		utils.ExtractFromNatsURL(config.NatsURL))
	if err != nil {
		log.Fatal("required services not ready", log.ErrorField(err))
	}
	log.Debug("Required services are available")
}

// SetupTelemetry starts exporters and runtime metrics if enabled.
// The returned Telemetry is nil if telemetry is disabled or failed.
func SetupTelemetry(ctx context.Context) *config.Telemetry {
	if !config.EnableTelemetry {
		return nil
	}
	log.Info("Enabling telemetry")
	telemetry, err := config.SetupTelemetry(ctx)
	if err != nil {
		log.Warn("Could not setup telemetry", log.ErrorField(err))
		return nil
	}
	err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
	if err != nil {
		log.Warn("Could not start runtime metrics", log.ErrorField(err))
	}
	return telemetry
}

// NewPool connects to config.DB. Queries are logged with sqlLogger and traced
// via otel when telemetry is active.
func NewPool(sqlLogger *log.Logger, telemetry *config.Telemetry) *pgxpool.Pool {
	pgTracer := pgxtrace.CompositeQueryTracer{
		postgres.NewMyTracer(sqlLogger, log.DebugLevel),
	}
	if telemetry != nil {
		pgTracer = append(pgTracer, postgres.NewOtlpTracer())
	}
	return postgres.InitWithUrl(config.DB, postgres.WithTracer(pgTracer))
}

// NewNatsConn connects to config.NatsURL. Returns nil if no URL is configured.
func NewNatsConn() (*nats.Conn, error) {
	if config.NatsURL == "" {
		return nil, nil
	}
	return nats.Connect(config.NatsURL,
		nats.Name("rsm"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", log.ErrorField(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", log.String("url", c.ConnectedUrl()))
		}),
	)
}
