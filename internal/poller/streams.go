package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/perfguard/perfguard/internal/activity"
	"github.com/perfguard/perfguard/internal/telemetry"
)

const defaultSampleInterval = 2 * time.Second

// TelemetrySample carries one full telemetry cycle: the process table and the
// host summary, measured together.
type TelemetrySample struct {
	Processes []telemetry.ProcessSample
	System    telemetry.SystemSnapshot
}

// TelemetryConfig configures the telemetry stream.
type TelemetryConfig struct {
	SampleInterval time.Duration
	// ProcessLimit caps the emitted process table; zero means no cap.
	ProcessLimit int
}

type telemetryStream struct {
	config    TelemetryConfig
	collector *telemetry.Collector
	logger    *zap.Logger
}

// StreamTelemetry returns a Stream that polls the process table and host
// summary each interval.
func StreamTelemetry(collector *telemetry.Collector, cfg TelemetryConfig, logger *zap.Logger) Stream {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = defaultSampleInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &telemetryStream{config: cfg, collector: collector, logger: logger}
}

func (s *telemetryStream) Start(ctx context.Context) (<-chan Envelope, error) {
	out := make(chan Envelope, 128)
	go s.run(ctx, out)
	return out, nil
}

func (s *telemetryStream) run(ctx context.Context, out chan<- Envelope) {
	defer close(out)

	ticker := time.NewTicker(s.config.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ts := <-ticker.C:
			procs, err := s.collector.CollectProcesses(ctx)
			if err != nil {
				// Transient sampling failures do not stop the stream.
				s.logger.Warn("process collection failed", zap.Error(err))
				continue
			}
			if s.config.ProcessLimit > 0 && len(procs) > s.config.ProcessLimit {
				procs = procs[:s.config.ProcessLimit]
			}

			sys, err := s.collector.CollectSystemSummary(ctx)
			if err != nil {
				s.logger.Warn("system summary failed", zap.Error(err))
				continue
			}

			env := Envelope{Timestamp: ts, Source: SourceTelemetry, Payload: TelemetrySample{Processes: procs, System: sys}}
			if !sendEnvelope(ctx, out, env) {
				return
			}
		}
	}
}

// ActivityConfig configures the activity stream.
type ActivityConfig struct {
	SampleInterval time.Duration
}

type activityStream struct {
	config  ActivityConfig
	tracker *activity.Tracker
}

// StreamActivity returns a Stream that drains the input counters each
// interval. It must be the only caller of DrainAndScore; a second drain site
// would split the counters and undercount both.
func StreamActivity(tracker *activity.Tracker, cfg ActivityConfig) Stream {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = defaultSampleInterval
	}
	return &activityStream{config: cfg, tracker: tracker}
}

func (s *activityStream) Start(ctx context.Context) (<-chan Envelope, error) {
	out := make(chan Envelope, 128)
	go s.run(ctx, out)
	return out, nil
}

func (s *activityStream) run(ctx context.Context, out chan<- Envelope) {
	defer close(out)

	ticker := time.NewTicker(s.config.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ts := <-ticker.C:
			env := Envelope{Timestamp: ts, Source: SourceActivity, Payload: s.tracker.DrainAndScore()}
			if !sendEnvelope(ctx, out, env) {
				return
			}
		}
	}
}
