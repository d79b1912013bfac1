package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"k2ledger/internal/campaign"
	"k2ledger/internal/catalog"
	"k2ledger/internal/config"
	"k2ledger/internal/detrend"
	"k2ledger/internal/layout"
	"k2ledger/internal/logging"
	"k2ledger/internal/runstore"
)

const DefaultModel = "nPLD"

// Detrender is the external pipeline as seen by a worker.
type Detrender interface {
	Detrend(ctx context.Context, opts detrend.Options) (detrend.Result, error)
	Download(ctx context.Context, epic int64, id campaign.ID) (detrend.Result, error)
}

type Options struct {
	Config    config.Config
	Job       config.Job
	Catalog   catalog.Resolver
	Detrender Detrender
	Logger    *zap.Logger
	Workers   int
}

type RunResult struct {
	Job       string `json:"job"`
	Kind      string `json:"kind"`
	Targets   int    `json:"targets"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// Run executes a saved job on the batch node. Per-target failures are counted and
// logged; only setup problems and cancellation are returned as errors.
func Run(ctx context.Context, opts Options) (RunResult, error) {
	if opts.Detrender == nil || opts.Catalog == nil {
		return RunResult{}, fmt.Errorf("worker requires a detrender and a catalog")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	job := opts.Job
	if err := job.Validate(); err != nil {
		return RunResult{}, err
	}

	tree := layout.NewTree(job.DataRoot, job.Mission)
	lock, err := runstore.AcquireJobLock(tree.LocksDir(), job.Name)
	if err != nil {
		return RunResult{}, err
	}
	defer func() {
		_ = lock.Release()
	}()

	targets, err := resolveTargets(ctx, opts.Catalog, job)
	if err != nil {
		return RunResult{}, err
	}
	logger := opts.Logger.With(zap.String("job", job.Name), zap.String("kind", string(job.Kind)))
	logger.Info("job started", zap.Int("targets", len(targets)))

	var res RunResult
	switch job.Kind {
	case config.JobDownload:
		res, err = runDownload(ctx, tree, job, targets, opts.Detrender, logger)
	case config.JobRun, config.JobPublish:
		res, err = runPool(ctx, tree, job, targets, opts.Detrender, logger, poolSize(opts))
	default:
		return RunResult{}, fmt.Errorf("unknown job kind %q", job.Kind)
	}
	res.Job = job.Name
	res.Kind = string(job.Kind)
	res.Targets = len(targets)
	logger.Info("job finished",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
		zap.Error(err))
	return res, err
}

func resolveTargets(ctx context.Context, resolver catalog.Resolver, job config.Job) ([]int64, error) {
	if job.EPIC > 0 {
		return []int64{job.EPIC}, nil
	}
	targets, err := resolver.ResolveCampaignTargets(ctx, job.CampaignID(), layout.NormalizeCadence(job.Cadence))
	if err != nil {
		return nil, fmt.Errorf("resolve targets for campaign %s: %w", job.CampaignID(), err)
	}
	for _, t := range targets {
		if err := layout.CheckID(t); err != nil {
			return nil, fmt.Errorf("campaign %s: %w", job.CampaignID(), err)
		}
	}
	return targets, nil
}

func poolSize(opts Options) int {
	for _, n := range []int{opts.Workers, opts.Config.Workers} {
		if n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

func runPool(ctx context.Context, tree layout.Tree, job config.Job, targets []int64, d Detrender, logger *zap.Logger, workers int) (RunResult, error) {
	model := strings.TrimSpace(job.Model)
	if model == "" {
		model = DefaultModel
	}
	cadence := layout.NormalizeCadence(job.Cadence)
	stage := layout.StageName(model, cadence)
	id := job.CampaignID()
	publish := job.Kind == config.JobPublish

	var succeeded, failed, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, target := range targets {
		if gctx.Err() != nil {
			break
		}
		dir, err := tree.TargetDir(id, target)
		if err != nil {
			failed.Add(1)
			logger.Error("target has no directory", zap.Int64("target", target), zap.Error(err))
			continue
		}
		if !publish && fileExists(filepath.Join(dir, layout.SuccessMarker(stage))) {
			skipped.Add(1)
			continue
		}
		g.Go(func() error {
			unit := fmt.Sprintf("EPIC%d", target)
			err := logging.Guard(logger, unit, func() error {
				_, err := d.Detrend(gctx, detrend.Options{
					EPIC:     target,
					Campaign: id,
					Model:    model,
					Cadence:  cadence,
					Publish:  publish,
					CSV:      job.PublishCSV,
					Extra:    job.ExtraArgs,
				})
				return err
			})
			if err == nil {
				succeeded.Add(1)
				return nil
			}
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			failed.Add(1)
			if markErr := writeErrorMarker(dir, stage, err); markErr != nil {
				logger.Warn("could not record failure", zap.String("unit", unit), zap.Error(markErr))
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return RunResult{
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
	}, err
}

// writeErrorMarker records a failure the detrender did not record itself. Existing
// markers of either kind are left alone.
func writeErrorMarker(dir, stage string, cause error) error {
	if fileExists(filepath.Join(dir, layout.SuccessMarker(stage))) || fileExists(filepath.Join(dir, layout.ErrorMarker(stage))) {
		return nil
	}
	return runstore.WriteBytes(filepath.Join(dir, layout.ErrorMarker(stage)), []byte(cause.Error()+"\n"))
}

func runDownload(ctx context.Context, tree layout.Tree, job config.Job, targets []int64, d Detrender, logger *zap.Logger) (RunResult, error) {
	id := job.CampaignID()
	res := RunResult{}
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		dir, err := tree.TargetDir(id, target)
		if err != nil {
			res.Failed++
			logger.Error("target has no directory", zap.Int64("target", target), zap.Error(err))
			continue
		}
		data := filepath.Join(dir, layout.DataMarker)
		if fileExists(data) {
			res.Skipped++
			continue
		}
		logger.Debug("downloading target", zap.Int64("target", target), zap.Int("n", i+1), zap.Int("of", len(targets)))
		err = logging.Guard(logger, fmt.Sprintf("EPIC%d", target), func() error {
			if _, err := d.Download(ctx, target, id); err != nil {
				return err
			}
			if !fileExists(data) {
				return errors.New("download finished without producing " + layout.DataMarker)
			}
			return nil
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			res.Failed++
			continue
		}
		res.Succeeded++
	}
	return res, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
