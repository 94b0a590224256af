package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // by design
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/cmd/cmdutil"
	"github.com/mpapenbr/regatta-scoring-go/pkg/config"
	"github.com/mpapenbr/regatta-scoring-go/pkg/endpoints/rest"
	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	"github.com/mpapenbr/regatta-scoring-go/pkg/notify"
	ssrepos "github.com/mpapenbr/regatta-scoring-go/pkg/repository/scoringsystem"
	seriesrepos "github.com/mpapenbr/regatta-scoring-go/pkg/repository/series"
	standingrepos "github.com/mpapenbr/regatta-scoring-go/pkg/repository/standing"
	"github.com/mpapenbr/regatta-scoring-go/pkg/service/scoring"
	"github.com/mpapenbr/regatta-scoring-go/pkg/utils/broadcast"
)

//nolint:funlen // by design
func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "starts the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&config.Addr,
		"addr",
		"a",
		"localhost:8080",
		"HTTP server listen address")
	cmd.Flags().StringVar(&config.AdminToken,
		"admin-token",
		"",
		"admin token value (required for modifying requests if set)")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data (use 'stdout' for console)")
	cmd.Flags().IntVar(&config.ProfilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
	cmd.Flags().IntVar(&config.RecomputeWorkers,
		"recompute-workers",
		4,
		"max number of series recomputed in parallel")
	cmd.Flags().StringVar(&config.SystemCacheTTL,
		"system-cache-ttl",
		"5m",
		"how long loaded scoring systems are cached")
	cmd.Flags().BoolVar(&config.EagerRecompute,
		"eager-recompute",
		false,
		"recompute standings right after a change notification")
	cmd.Flags().StringVar(&config.KVBucket,
		"kv-bucket",
		notify.DefaultBucket,
		"NATS KV bucket that receives standing summaries")
	cmd.Flags().StringVar(&config.TLSCertFile,
		"tls-cert-file",
		"",
		"path to TLS certificate (enables https)")
	cmd.Flags().StringVar(&config.TLSKeyFile,
		"tls-key-file",
		"",
		"path to TLS key")
	cmdutil.AddLogFlags(cmd)
	return cmd
}

//nolint:funlen,cyclop // by design
func startServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, sqlLogger := cmdutil.SetupLogger()
	ctx = log.AddToContext(ctx, logger)

	if config.ProfilingPort > 0 {
		log.Info("Starting profiling server on port", log.Int("port", config.ProfilingPort))
		go func() {
			//nolint:gosec // by design
			err := http.ListenAndServe(
				fmt.Sprintf("localhost:%d", config.ProfilingPort),
				nil)
			if err != nil {
				log.Error("Profiling server stopped", log.ErrorField(err))
			}
		}()
	}

	cmdutil.WaitForServices(ctx)
	telemetry := cmdutil.SetupTelemetry(ctx)
	if telemetry != nil {
		defer telemetry.Shutdown()
	}

	pool := cmdutil.NewPool(sqlLogger, telemetry)
	defer pool.Close()

	nc, err := cmdutil.NewNatsConn()
	if err != nil {
		log.Error("could not connect to nats", log.ErrorField(err))
		return err
	}
	if nc != nil {
		defer nc.Close()
	}
	notifier, err := notify.NewNotifier(nc,
		notify.WithContext(ctx),
		notify.WithBucket(config.KVBucket, 0),
		notify.WithEagerRecompute(config.EagerRecompute))
	if err != nil {
		log.Error("could not setup notifications", log.ErrorField(err))
		return err
	}
	defer notifier.Close()

	ttl, err := time.ParseDuration(config.SystemCacheTTL)
	if err != nil {
		log.Warn("Invalid cache ttl. Setting default 5m", log.ErrorField(err))
		ttl = 5 * time.Minute
	}
	published := make(chan *model.CachedResult)
	updates := broadcast.NewBroadcastServer[*model.CachedResult]("standings", published)
	defer updates.Close()
	forward := func(ctx context.Context, res *model.CachedResult) {
		select {
		case published <- res:
		case <-ctx.Done():
		case <-time.After(time.Second):
			log.Warn("standing update dropped", log.Int("seriesId", res.SeriesID))
		}
	}

	seriesProvider := seriesrepos.NewProvider(pool)
	systemProvider := ssrepos.NewProvider(pool)
	svc := scoring.NewService(
		scoring.WithSeriesProvider(seriesProvider),
		scoring.WithScoringSystemProvider(systemProvider, ttl),
		scoring.WithStore(standingrepos.NewStore(pool)),
		scoring.WithWorkers(config.RecomputeWorkers),
		scoring.WithPublishHook(notifier.StandingPublished),
		scoring.WithPublishHook(forward),
	)
	if err := notifier.Subscribe(svc); err != nil {
		log.Error("could not subscribe to changes", log.ErrorField(err))
		return err
	}

	api := rest.NewServer(
		rest.WithStandingService(svc),
		rest.WithResultWriter(seriesProvider),
		rest.WithScoringSystemWriter(systemProvider),
		rest.WithSummaryReader(notifier),
		rest.WithChangePublisher(notifier),
		rest.WithAdminToken(config.AdminToken),
		rest.WithUpdates(updates),
	)
	//nolint:gosec // by design
	server := &http.Server{
		Addr:    config.Addr,
		Handler: h2c.NewHandler(newCORS().Handler(api.Handler()), &http2.Server{}),
	}
	tlsConfig := newTLSConfigProvider(ctx)
	server.TLSConfig = tlsConfig

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server",
			log.String("addr", config.Addr), log.Bool("tls", tlsConfig != nil))
		if tlsConfig != nil {
			errCh <- server.ListenAndServeTLS("", "")
		} else {
			errCh <- server.ListenAndServe()
		}
	}()
	setupGoRoutinesDump()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server could not be started", log.ErrorField(err))
			return err
		}
	case <-ctx.Done():
		log.Debug("Got signal")
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", log.ErrorField(err))
	}
	log.Info("Server terminated")
	return nil
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}

func newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			"Accept",
			"Accept-Encoding",
			"Content-Encoding",
		},
		// FF caps this value at 24h, Chrome at 2h
		MaxAge: int(2 * time.Hour / time.Second),
	})
}
