// Package profiling writes pprof profiles and an execution trace of a
// reporting run, and samples the process' resident memory while it runs.
package profiling

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/ajitpratap0/feaout/pkg/errors"
)

// ProfileType represents the type of profiling to perform
type ProfileType string

const (
	CPUProfile       ProfileType = "cpu"
	MemoryProfile    ProfileType = "memory"
	BlockProfile     ProfileType = "block"
	MutexProfile     ProfileType = "mutex"
	GoroutineProfile ProfileType = "goroutine"
	TraceProfile     ProfileType = "trace"
)

// ParseTypes parses a comma separated list such as "cpu,memory"; "all"
// selects every type
func ParseTypes(s string) ([]ProfileType, error) {
	var out []ProfileType
	for _, part := range strings.Split(s, ",") {
		switch t := ProfileType(strings.TrimSpace(part)); t {
		case "":
		case "all":
			return []ProfileType{CPUProfile, MemoryProfile, BlockProfile, MutexProfile, GoroutineProfile, TraceProfile}, nil
		case CPUProfile, MemoryProfile, BlockProfile, MutexProfile, GoroutineProfile, TraceProfile:
			out = append(out, t)
		default:
			return nil, errors.Newf(errors.ErrorTypeConfig, "unknown profile type %q", part)
		}
	}
	return out, nil
}

// Config contains configuration for profiling
type Config struct {
	Types     []ProfileType
	OutputDir string
	// SampleInterval is the resident memory sampling period; zero disables
	// sampling
	SampleInterval time.Duration
}

// Usage is what the sampler observed
type Usage struct {
	Samples  int
	PeakRSS  uint64
	LastRSS  uint64
	Duration time.Duration
}

// Profiler collects the configured profiles between Start and Stop
type Profiler struct {
	config Config
	logger *zap.Logger

	start     time.Time
	cpuFile   *os.File
	traceFile *os.File
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu    sync.Mutex
	usage Usage
}

// New creates a profiler
func New(config Config, logger *zap.Logger) *Profiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.OutputDir == "" {
		config.OutputDir = "./profiles"
	}
	return &Profiler{config: config, logger: logger.With(zap.String("component", "profiler"))}
}

func (p *Profiler) has(t ProfileType) bool {
	for _, c := range p.config.Types {
		if c == t {
			return true
		}
	}
	return false
}

// Start begins profiling
func (p *Profiler) Start(ctx context.Context) error {
	p.start = time.Now()
	if err := os.MkdirAll(p.config.OutputDir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create profile directory")
	}

	if p.has(BlockProfile) {
		runtime.SetBlockProfileRate(1)
	}
	if p.has(MutexProfile) {
		runtime.SetMutexProfileFraction(1)
	}

	if p.has(CPUProfile) {
		f, err := p.create("cpu.prof")
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to start CPU profile")
		}
		p.cpuFile = f
	}
	if p.has(TraceProfile) {
		f, err := p.create("trace.out")
		if err != nil {
			return err
		}
		if err := trace.Start(f); err != nil {
			f.Close()
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to start trace")
		}
		p.traceFile = f
	}

	if p.config.SampleInterval > 0 {
		ctx, p.cancel = context.WithCancel(ctx)
		p.wg.Add(1)
		go p.sample(ctx)
	}

	p.logger.Info("profiling started",
		zap.String("output_dir", p.config.OutputDir),
		zap.Any("types", p.config.Types))
	return nil
}

// Stop stops profiling, writes the snapshot profiles and returns the
// sampled memory usage
func (p *Profiler) Stop() (Usage, error) {
	if p.cancel != nil {
		p.cancel()
		p.wg.Wait()
	}

	var errs []error
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		errs = append(errs, p.cpuFile.Close())
		p.cpuFile = nil
	}
	if p.traceFile != nil {
		trace.Stop()
		errs = append(errs, p.traceFile.Close())
		p.traceFile = nil
	}
	if p.has(MemoryProfile) {
		runtime.GC()
		errs = append(errs, p.lookup("heap", "memory.prof", 0))
	}
	if p.has(BlockProfile) {
		errs = append(errs, p.lookup("block", "block.prof", 0))
		runtime.SetBlockProfileRate(0)
	}
	if p.has(MutexProfile) {
		errs = append(errs, p.lookup("mutex", "mutex.prof", 0))
		runtime.SetMutexProfileFraction(0)
	}
	if p.has(GoroutineProfile) {
		errs = append(errs, p.lookup("goroutine", "goroutine.prof", 2))
	}

	p.mu.Lock()
	p.usage.Duration = time.Since(p.start)
	usage := p.usage
	p.mu.Unlock()

	p.logger.Info("profiling stopped",
		zap.Duration("duration", usage.Duration),
		zap.Uint64("peak_rss_bytes", usage.PeakRSS))
	return usage, errors.Join(errs...)
}

func (p *Profiler) create(name string) (*os.File, error) {
	path := filepath.Join(p.config.OutputDir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create profile").WithDetail("path", path)
	}
	return f, nil
}

func (p *Profiler) lookup(profile, name string, debug int) error {
	f, err := p.create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := pprof.Lookup(profile).WriteTo(f, debug); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write profile").WithDetail("profile", profile)
	}
	return nil
}

// sample records the resident set size every SampleInterval
func (p *Profiler) sample(ctx context.Context) {
	defer p.wg.Done()

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		p.logger.Warn("memory sampling unavailable", zap.Error(err))
		return
	}

	ticker := time.NewTicker(p.config.SampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mem, err := proc.MemoryInfoWithContext(ctx)
			if err != nil {
				continue
			}
			p.mu.Lock()
			p.usage.Samples++
			p.usage.LastRSS = mem.RSS
			if mem.RSS > p.usage.PeakRSS {
				p.usage.PeakRSS = mem.RSS
			}
			p.mu.Unlock()
		}
	}
}
