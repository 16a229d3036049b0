package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospector-cli/internal/model"
	"github.com/sells-group/prospector-cli/internal/prospects"
	"github.com/sells-group/prospector-cli/internal/store"
	"github.com/sells-group/prospector-cli/internal/verify"
)

var (
	batchFile  string
	batchLimit int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Discover emails for a file of prospects",
	Long:  "Reads prospects from a CSV or XLSX file (columns: first_name, last_name, domain) and runs discovery for each with bounded concurrency.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		driver, err := initDriver()
		if err != nil {
			return err
		}

		list, err := prospects.ReadFile(batchFile)
		if err != nil {
			return eris.Wrap(err, "read prospect file")
		}

		return processBatch(ctx, st, driver, list, batchLimit, cfg.Batch.MaxConcurrentProspects)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "prospect file, .csv or .xlsx (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of prospects to process (0 = all)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

// processBatch applies limit, then runs discovery for each prospect
// concurrently. Individual failures are recorded and do not abort the batch.
func processBatch(ctx context.Context, st store.Store, driver *verify.Driver, list []model.Prospect, limit, concurrency int) error {
	if len(list) == 0 {
		zap.L().Info("no prospects found in file")
		return nil
	}

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("prospects", len(list)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var found, exhausted, failed atomic.Int64

	for _, prospect := range list {
		g.Go(func() error {
			log := zap.L().With(
				zap.String("first_name", prospect.FirstName),
				zap.String("last_name", prospect.LastName),
				zap.String("domain", prospect.Domain),
			)

			run, err := st.CreateRun(gctx, prospect)
			if err != nil {
				failed.Add(1)
				log.Error("create run failed", zap.Error(err))
				return nil
			}

			report, err := driver.VerifyEmails(gctx, run.ID, prospect.FirstName, prospect.LastName, prospect.Domain)
			if err != nil {
				failed.Add(1)
				log.Error("discovery failed", zap.Error(err))
				if failErr := st.FailRun(gctx, run.ID, err); failErr != nil {
					log.Warn("failed to record run failure", zap.Error(failErr))
				}
				return nil // don't abort batch on individual failure
			}

			if report.TotalValid > 0 {
				found.Add(1)
			} else {
				exhausted.Add(1)
			}
			if err := st.CompleteRun(gctx, run.ID, &model.RunResult{
				ValidEmails:      report.ValidEmails,
				TotalValid:       report.TotalValid,
				TotalGenerated:   report.TotalGenerated,
				BatchesProcessed: report.BatchesProcessed,
			}); err != nil {
				log.Warn("failed to record run result", zap.Error(err))
			}

			log.Info("prospect done",
				zap.Int("valid", report.TotalValid),
				zap.Int("batches", report.BatchesProcessed),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("found", found.Load()),
		zap.Int64("exhausted", exhausted.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
