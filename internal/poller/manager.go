// Package poller drives the sampling cadence. Streams produce timestamped
// envelopes on their own goroutines; the manager fans them in and hands them
// to a single emit callback, which is where session aggregation happens.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoEmitFunc is returned when the caller does not provide an emit callback.
var ErrNoEmitFunc = errors.New("poller: emit func is nil")

// Source indicates the origin of a sample for routing.
type Source string

const (
	SourceTelemetry Source = "telemetry"
	SourceActivity  Source = "activity"
)

// Envelope wraps any sample emitted by a stream.
type Envelope struct {
	Timestamp time.Time
	Source    Source
	Payload   any
}

// Stream emits envelopes from a specific backend.
type Stream interface {
	Start(ctx context.Context) (<-chan Envelope, error)
}

// EmitFunc consumes envelopes produced by Stream implementations.
type EmitFunc func(Envelope) error

// Manager fans in multiple Streams and feeds the emit callback.
type Manager struct {
	streams []Stream
	logger  *zap.Logger
}

// NewManager creates a Manager with the supplied streams.
func NewManager(logger *zap.Logger, streams ...Stream) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{streams: streams, logger: logger}
}

// Run activates all registered streams and forwards samples to emit. It
// returns when the context is canceled, every stream completes, or emit
// returns an error.
func (m *Manager) Run(ctx context.Context, emit EmitFunc) error {
	if emit == nil {
		return ErrNoEmitFunc
	}
	if len(m.streams) == 0 {
		m.logger.Warn("no streams configured, skipping run")
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, len(m.streams))

	m.logger.Info("starting streams", zap.Int("count", len(m.streams)))
	for _, stream := range m.streams {
		stream := stream
		ch, err := stream.Start(ctx)
		if err != nil {
			m.logger.Error("stream failed to start", zap.Error(err))
			cancel()
			return err
		}

		wg.Add(1)
		go func(ch <-chan Envelope) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case env, ok := <-ch:
					if !ok {
						return
					}
					if err := emit(env); err != nil && !errors.Is(err, context.Canceled) {
						select {
						case errCh <- err:
						default:
						}
						m.logger.Error("emit returned error", zap.String("source", string(env.Source)), zap.Error(err))
						cancel()
						return
					}
				}
			}
		}(ch)
	}

	doneCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneCh)
	}()

	for {
		select {
		case <-ctx.Done():
			// Emit callbacks can still be in flight when the context ends.
			// Wait for every forwarder so no emit runs after Run returns;
			// callers rely on that to touch emit-owned state safely.
			<-doneCh
			// Drain any emitted errors before returning.
			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
			default:
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				m.logger.Info("run canceled")
				return nil
			}
			return ctx.Err()
		case err := <-errCh:
			if err != nil {
				return err
			}
		case <-doneCh:
			m.logger.Info("all streams completed")
			return nil
		}
	}
}

// sendEnvelope delivers env unless the context ends first.
func sendEnvelope(ctx context.Context, out chan<- Envelope, env Envelope) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- env:
		return true
	}
}
