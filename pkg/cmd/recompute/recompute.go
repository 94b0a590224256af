package recompute

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/cmd/cmdutil"
	"github.com/mpapenbr/regatta-scoring-go/pkg/config"
	"github.com/mpapenbr/regatta-scoring-go/pkg/notify"
	ssrepos "github.com/mpapenbr/regatta-scoring-go/pkg/repository/scoringsystem"
	seriesrepos "github.com/mpapenbr/regatta-scoring-go/pkg/repository/series"
	standingrepos "github.com/mpapenbr/regatta-scoring-go/pkg/repository/standing"
	"github.com/mpapenbr/regatta-scoring-go/pkg/service/scoring"
)

var (
	seriesIDs []int
	all       bool
)

var errNoSeries = errors.New("either --series or --all is required")

func NewRecomputeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "recomputes and publishes series standings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(seriesIDs) == 0 && !all {
				return errNoSeries
			}
			return recompute(cmd.Context())
		},
	}
	cmd.Flags().IntSliceVar(&seriesIDs, "series", nil,
		"ids of the series to recompute")
	cmd.Flags().BoolVar(&all, "all", false,
		"recompute all series")
	cmd.Flags().IntVar(&config.RecomputeWorkers, "recompute-workers", 4,
		"number of series computed concurrently")
	cmd.Flags().StringVar(&config.KVBucket, "kv-bucket", notify.DefaultBucket,
		"NATS KV bucket that receives standing summaries")
	cmdutil.AddLogFlags(cmd)
	return cmd
}

func recompute(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, sqlLogger := cmdutil.SetupLogger()
	cmdutil.WaitForServices(ctx)

	pool := cmdutil.NewPool(sqlLogger, nil)
	defer pool.Close()

	ids := seriesIDs
	if all {
		var err error
		if ids, err = seriesrepos.LoadAllIDs(ctx, pool); err != nil {
			return err
		}
	}

	nc, err := cmdutil.NewNatsConn()
	if err != nil {
		return err
	}
	if nc != nil {
		defer nc.Close()
	}
	notifier, err := notify.NewNotifier(nc,
		notify.WithContext(ctx),
		notify.WithBucket(config.KVBucket, 0))
	if err != nil {
		return err
	}
	defer notifier.Close()

	svc := scoring.NewService(
		scoring.WithSeriesProvider(seriesrepos.NewProvider(pool)),
		scoring.WithScoringSystemProvider(ssrepos.NewProvider(pool), time.Minute),
		scoring.WithStore(standingrepos.NewStore(pool)),
		scoring.WithWorkers(config.RecomputeWorkers),
		scoring.WithPublishHook(notifier.StandingPublished),
	)
	start := time.Now()
	err = svc.RecomputeAll(ctx, ids)
	log.Info("recompute done",
		log.Int("series", len(ids)),
		log.Duration("duration", time.Since(start)),
		log.Bool("success", err == nil))
	return err
}
