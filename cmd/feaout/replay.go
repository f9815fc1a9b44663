package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/feaout/internal/replay"
	"github.com/ajitpratap0/feaout/internal/report"
	"github.com/ajitpratap0/feaout/pkg/archive"
	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/json"
	"github.com/ajitpratap0/feaout/pkg/logger"
	"github.com/ajitpratap0/feaout/pkg/metrics"
	"github.com/ajitpratap0/feaout/pkg/observability"
	"github.com/ajitpratap0/feaout/pkg/profiling"
	"github.com/ajitpratap0/feaout/pkg/sink"
)

type replayOptions struct {
	runID       string
	follow      bool
	idle        time.Duration
	volumeEvery int
	skipVolume  bool
	summary     bool
	profileDir  string
	profiles    string
}

func newReplayCmd() *cobra.Command {
	opts := &replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay TRACE",
		Short: "Report a recorded solver trace",
		Long: `Replay a solver trace (JSON lines, optionally .gz/.zst/.lz4/.snappy/.s2
compressed) through the reporter, writing every configured sink.

Flags override the config file; FEAOUT_* environment variables override both
file and defaults, e.g. FEAOUT_OUTPUT_WRITE_FREQUENCY=5.

Example:
  feaout replay run.jsonl --history history.csv --database history.db
  feaout replay live.jsonl --follow --idle 30s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSettings(cmd.Flags())
			if err != nil {
				return err
			}
			cfg, err := s.load(cmd.Flags())
			if err != nil {
				return err
			}
			return runReplay(cmd.Context(), cfg, args[0], opts)
		},
	}
	addOutputFlags(cmd.Flags())
	cmd.Flags().StringVar(&opts.runID, "run-id", "", "Run ID recorded with history rows (random when empty)")
	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Keep reporting lines appended to the trace")
	cmd.Flags().DurationVar(&opts.idle, "idle", 0, "Stop following after this long without new lines")
	cmd.Flags().IntVar(&opts.volumeEvery, "volume-every", 1, "Report every n-th recorded volume snapshot")
	cmd.Flags().BoolVar(&opts.skipVolume, "skip-volume", false, "Ignore recorded volume snapshots")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "Print a JSON summary when done")
	cmd.Flags().StringVar(&opts.profileDir, "profile-dir", "", "Write pprof profiles of the replay to this directory")
	cmd.Flags().StringVar(&opts.profiles, "profiles", "cpu,memory", "Profiles to collect (cpu, memory, block, mutex, goroutine, trace, all)")
	return cmd
}

func runReplay(parent context.Context, cfg *config.Config, path string, opts *replayOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.runID == "" {
		opts.runID = uuid.NewString()
	}
	ctx = context.WithValue(ctx, logger.RunIDKey, opts.runID)

	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	log := logger.WithContext(ctx)
	defer func() { _ = logger.Sync() }()

	rd, err := replay.Open(path, log)
	if err != nil {
		return err
	}
	defer rd.Close()
	replay.Configure(cfg, rd.Header())

	if err := observability.Initialize(cfg.Tracing, version, os.Stderr); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	if opts.profileDir != "" {
		types, err := profiling.ParseTypes(opts.profiles)
		if err != nil {
			return err
		}
		prof := profiling.New(profiling.Config{
			Types:          types,
			OutputDir:      opts.profileDir,
			SampleInterval: time.Second,
		}, log)
		if err := prof.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if _, err := prof.Stop(); err != nil {
				log.Warn("failed to write profiles", zap.Error(err))
			}
		}()
	}

	if cfg.Metrics.Enabled {
		srv := serveMetrics(cfg.Metrics.ListenAddr, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	rep, err := report.New(report.Options{Config: cfg, Logger: log, RunID: opts.runID})
	if err != nil {
		return err
	}
	defer func() {
		if err := rep.Close(); err != nil {
			log.Error("failed to close sinks", zap.Error(err))
		}
	}()

	ropts := replay.Options{VolumeEvery: opts.volumeEvery, SkipVolume: opts.skipVolume}
	r := replay.NewReplayer(rep, rd.Header(), ropts, log)
	if opts.follow {
		err = replay.Follow(ctx, r, rd, path, replay.FollowOptions{IdleTimeout: opts.idle})
	} else {
		err = r.Drain(ctx, rd)
	}
	if err != nil {
		return err
	}

	sum := r.Summary()
	log.Info("replay finished", zap.Int("frames", sum.Frames), zap.Int("volumes", sum.Volumes))

	if cfg.Archive.Enabled() && rep.IsMaster() {
		if err := rep.Close(); err != nil {
			return err
		}
		if err := archiveOutputs(ctx, cfg, rep.OutputFiles(), opts.runID, log); err != nil {
			return err
		}
	}
	if opts.summary {
		return printSummary(sum, rep)
	}
	return nil
}

func printSummary(sum replay.Summary, rep *report.Reporter) error {
	out := struct {
		replay.Summary
		ConvergenceField string `json:"convergence_field"`
		ConvergenceValue string `json:"convergence_value,omitempty"`
	}{Summary: sum}
	id, v, err := rep.ConvergenceValue()
	out.ConvergenceField = string(id)
	if err == nil {
		out.ConvergenceValue = sink.FormatExact(field.Descriptor{}, v)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func archiveOutputs(ctx context.Context, cfg *config.Config, files []string, runID string, log *zap.Logger) error {
	store, dest, err := archive.Open(ctx, cfg.Archive, log)
	if err != nil {
		return err
	}
	a := archive.New(store, dest, cfg.Archive.Concurrency, log)
	defer a.Close()

	keys, err := a.Upload(ctx, runID, files, map[string]string{
		"geometry_mode": string(cfg.Analysis.GeometryMode),
		"time_mode":     string(cfg.Analysis.TimeMode),
		"zone":          fmt.Sprint(cfg.Output.Zone),
	})
	if err != nil {
		return err
	}
	log.Info("outputs archived", zap.String("url", cfg.Archive.URL), zap.Strings("keys", keys))
	return nil
}

func serveMetrics(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return srv
}
