// Package converter turns HTML into PDF on top of the worker pool. It
// applies the service-wide converter flags and reports every conversion to
// the logs, the event bus and Prometheus.
package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/pdfnode/internal/events"
	"github.com/smazurov/pdfnode/internal/logging"
	"github.com/smazurov/pdfnode/internal/metrics"
	"github.com/smazurov/pdfnode/internal/process"
	"github.com/smazurov/pdfnode/internal/wkhtmltopdf"
)

// Pool is the part of *process.Pool the service needs.
type Pool interface {
	Convert(ctx context.Context, input io.Reader, opts wkhtmltopdf.Options) (*process.Result, error)
}

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// Service runs conversions with default options and monitoring.
type Service struct {
	pool     Pool
	bus      EventPublisher
	defaults wkhtmltopdf.Options
	logger   *slog.Logger
}

// NewService creates a conversion service. bus may be nil.
func NewService(pool Pool, bus EventPublisher) *Service {
	return &Service{
		pool:     pool,
		bus:      bus,
		defaults: wkhtmltopdf.DefaultOptions(),
		logger:   logging.GetLogger("converter"),
	}
}

// Defaults returns a copy of the flags applied to every conversion.
func (s *Service) Defaults() wkhtmltopdf.Options {
	return s.defaults.Clone()
}

// Convert starts converting input. overrides are applied on top of the
// default flags. The returned Stream yields the PDF and must be closed.
func (s *Service) Convert(ctx context.Context, input io.Reader, overrides wkhtmltopdf.Options) (*Stream, error) {
	logger := logging.FromContext(ctx, s.logger)
	requestID := RequestIDFromContext(ctx)
	start := time.Now()

	metrics.ConversionStarted()

	res, err := s.pool.Convert(ctx, input, s.defaults.Merge(overrides))
	if err != nil {
		logger.Error("Failed to generate a PDF", "error", err)
		metrics.ConversionFinished(false, time.Since(start), 0)
		s.publish(events.ConversionFailedEvent{
			RequestID:  requestID,
			Error:      err.Error(),
			DurationMs: time.Since(start).Milliseconds(),
			Timestamp:  time.Now().Format(time.RFC3339),
		})
		return nil, err
	}

	return &Stream{
		service:   s,
		result:    res,
		logger:    logger.With("worker_id", res.WorkerID()),
		requestID: requestID,
		start:     start,
	}, nil
}

func (s *Service) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

// ErrAborted is reported for a stream closed before the PDF was complete.
var ErrAborted = errors.New("conversion aborted by caller")

// Stream is the PDF output of one conversion. It measures the time and
// size of the document and reports the outcome once the stream ends.
type Stream struct {
	service   *Service
	result    *process.Result
	logger    *slog.Logger
	requestID string
	start     time.Time

	bytes      int64
	reportOnce sync.Once
}

// WorkerID identifies the worker rendering this document.
func (st *Stream) WorkerID() uint64 {
	return st.result.WorkerID()
}

// Read reads PDF bytes. It returns io.EOF only for a complete document.
func (st *Stream) Read(p []byte) (int, error) {
	n, err := st.result.Read(p)
	st.bytes += int64(n)

	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		st.report(nil)
	default:
		st.report(err)
	}
	return n, err
}

// Close releases the worker. Closing before io.EOF counts as a failure.
func (st *Stream) Close() error {
	st.report(ErrAborted)
	return st.result.Close()
}

// report logs and publishes the outcome, once.
func (st *Stream) report(err error) {
	st.reportOnce.Do(func() {
		elapsed := time.Since(st.start)
		ms := elapsed.Milliseconds()
		now := time.Now().Format(time.RFC3339)

		metrics.ConversionFinished(err == nil, elapsed, st.bytes)

		if err != nil {
			st.logger.Error("Failed to generate a PDF", "error", err, "time", ms, "size", st.bytes)
			st.service.publish(events.ConversionFailedEvent{
				RequestID:  st.requestID,
				WorkerID:   st.WorkerID(),
				Error:      err.Error(),
				DurationMs: ms,
				Timestamp:  now,
			})
			return
		}

		st.logger.Info(fmt.Sprintf("Generated a PDF in %d ms (%d bytes)", ms, st.bytes), "time", ms, "size", st.bytes)
		st.service.publish(events.ConversionCompletedEvent{
			RequestID:  st.requestID,
			WorkerID:   st.WorkerID(),
			Bytes:      st.bytes,
			DurationMs: ms,
			Timestamp:  now,
		})
	})
}
