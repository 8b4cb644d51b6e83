package sysinfo

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultProbeTimeout = 2 * time.Second
	DefaultParallelism  = 4
)

// Provider gathers snapshots by running a fixed set of probes.
// It holds no per-snapshot state and is safe for concurrent use.
type Provider struct {
	logger      *zap.Logger
	probes      []Probe
	timeout     time.Duration
	parallelism int
}

// Option configures a Provider
type Option func(*Provider)

// WithProbeTimeout bounds the time a single probe may take.
// Zero or negative disables the bound.
func WithProbeTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.timeout = d
	}
}

// WithParallelism limits how many probes of one acquisition run at once.
func WithParallelism(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.parallelism = n
		}
	}
}

// NewProvider creates a provider. When several probes fill the same field,
// the first registered probe that yields a value wins.
func NewProvider(logger *zap.Logger, probes []Probe, opts ...Option) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Provider{
		logger:      logger,
		probes:      probes,
		timeout:     DefaultProbeTimeout,
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire takes a new snapshot. Facets that cannot be determined are left
// Unavailable; only a snapshot that cannot be produced at all is an error.
// The returned snapshot is owned by the caller.
func (p *Provider) Acquire(ctx context.Context) (*SystemInfo, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil provider", ErrAcquire)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAcquire, err)
	}

	start := time.Now()
	results := make([]string, len(p.probes))

	var g errgroup.Group
	g.SetLimit(p.parallelism)
	for i, probe := range p.probes {
		g.Go(func() error {
			results[i] = p.run(ctx, probe)
			return nil
		})
	}
	// Probe goroutines never return errors; failures are absorbed in run
	_ = g.Wait()

	info := &SystemInfo{}
	for i, probe := range p.probes {
		f := probe.Field()
		if results[i] == Unavailable || info.Available(f) {
			continue
		}
		info.set(f, results[i])
	}

	p.logger.Debug("Acquired system info snapshot",
		zap.Int("probes", len(p.probes)),
		zap.Duration("elapsed", time.Since(start)))

	return info, nil
}

type probeResult struct {
	value string
	err   error
}

// run executes a single probe, absorbing errors and panics. The probe runs
// in its own goroutine so a strategy that ignores ctx cannot hold up the
// snapshot; its late result is discarded.
func (p *Provider) run(ctx context.Context, probe Probe) string {
	field := probe.Field()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	done := make(chan probeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Panic recovered in facet probe",
					zap.String("facet", field.Key()),
					zap.Any("panic", r),
					zap.String("stack", string(debug.Stack())))
				done <- probeResult{err: fmt.Errorf("probe panicked: %v", r)}
			}
		}()

		v, err := probe.Probe(ctx)
		done <- probeResult{value: v, err: err}
	}()

	var res probeResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	if res.err == nil && ctx.Err() != nil {
		res.err = ctx.Err()
	}
	if res.err != nil {
		p.logger.Warn("Facet unavailable",
			zap.String("facet", field.Key()),
			zap.Error(res.err))
		return Unavailable
	}

	v := strings.TrimSpace(res.value)
	if v == Unavailable {
		p.logger.Warn("Facet unavailable",
			zap.String("facet", field.Key()),
			zap.Error(ErrUnavailable))
	}
	return v
}

// Release disposes of a snapshot. Every field reads as Unavailable
// afterwards. A nil snapshot is a no-op and releasing twice is harmless.
func Release(info *SystemInfo) {
	if info == nil {
		return
	}
	*info = SystemInfo{}
}

// With takes a snapshot, hands a copy to fn and releases the snapshot on
// every exit path.
func (p *Provider) With(ctx context.Context, fn func(SystemInfo) error) error {
	info, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer Release(info)

	return fn(*info)
}
