// Package observability records request metrics and operation spans through
// slog. Counters accumulate in memory so the admin stats endpoint can report
// them; span and metric lines are logged at debug level when enabled.
package observability

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Config toggles debug emission of spans and datapoints.
type Config struct {
	Enabled bool
}

// ShutdownFunc uninstalls the recorder and logs the final counters.
type ShutdownFunc func(context.Context) error

type recorder struct {
	logger *slog.Logger
	cfg    Config

	mu       sync.Mutex
	counters map[string]float64
}

var current atomic.Pointer[recorder]

// Setup installs the process recorder. Until it is called every function in
// this package is a no-op.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (ShutdownFunc, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discard{}, nil))
	}
	rec := &recorder{logger: logger, cfg: cfg, counters: make(map[string]float64)}
	current.Store(rec)

	logger.InfoContext(ctx, "[OBS] recorder installed", slog.Bool("debug_emission", cfg.Enabled))

	return func(ctx context.Context) error {
		if current.CompareAndSwap(rec, nil) {
			logger.InfoContext(ctx, "[OBS] recorder removed", slog.Int("series", len(rec.snapshot())))
		}
		return nil
	}, nil
}

// Enabled reports whether debug emission is on.
func Enabled() bool {
	rec := current.Load()
	return rec != nil && rec.cfg.Enabled
}

// StartSpan times an operation; the returned func ends it.
func StartSpan(ctx context.Context, component, operation string) (context.Context, func(error)) {
	rec := current.Load()
	if rec == nil {
		return ctx, func(error) {}
	}

	start := time.Now()
	return ctx, func(err error) {
		elapsed := time.Since(start)
		labels := map[string]string{"component": component, "operation": operation}
		rec.add("span.duration_ms", float64(elapsed.Milliseconds()), labels)
		if err != nil {
			rec.add("span.errors", 1, labels)
		}
		if !rec.cfg.Enabled && err == nil {
			return
		}

		level := slog.LevelDebug
		attrs := []slog.Attr{
			slog.String("component", component),
			slog.String("operation", operation),
			slog.Duration("duration", elapsed),
		}
		if err != nil {
			level = slog.LevelWarn
			attrs = append(attrs, slog.Any("error", err))
		}
		rec.logger.LogAttrs(ctx, level, "[OBS] span", attrs...)
	}
}

// RecordMetric adds value to the counter identified by name and labels.
func RecordMetric(ctx context.Context, name string, value float64, labels map[string]string) {
	rec := current.Load()
	if rec == nil {
		return
	}
	rec.add(name, value, labels)
	if !rec.cfg.Enabled {
		return
	}

	attrs := []slog.Attr{
		slog.String("metric", name),
		slog.Float64("value", value),
	}
	for k, v := range labels {
		attrs = append(attrs, slog.String(k, v))
	}
	rec.logger.LogAttrs(ctx, slog.LevelDebug, "[OBS] metric", attrs...)
}

// Snapshot copies the accumulated counters, keyed "name{k=v,...}".
func Snapshot() map[string]float64 {
	rec := current.Load()
	if rec == nil {
		return map[string]float64{}
	}
	return rec.snapshot()
}

func (r *recorder) add(name string, value float64, labels map[string]string) {
	key := seriesKey(name, labels)
	r.mu.Lock()
	r.counters[key] += value
	r.mu.Unlock()
}

func (r *recorder) snapshot() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]float64, len(r.counters))
	for k, v := range r.counters {
		out[k] = v
	}
	return out
}

func seriesKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
