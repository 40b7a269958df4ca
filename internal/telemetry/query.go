package telemetry

import (
	"context"
	"fmt"
	"time"
)

// Query limits. The default applies when a caller omits limit; the
// maximum caps what a caller may request.
const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 500
)

// demoNotice explains a fallback response to human consumers.
const demoNotice = "Live telemetry store unreachable; serving demonstration data."

// QueryService serves filtered reading history with page statistics.
//
// When the backing store is unreachable the service degrades to a
// synthetic demonstration series instead of surfacing an error: a single
// bounded attempt is made against the live store per call, with no
// retry loop.
type QueryService struct {
	readings ReadingRepository
	logger   Logger
	timeout  time.Duration
}

// NewQueryService creates a query service. The timeout bounds the single
// live-store attempt per call; zero disables the bound.
func NewQueryService(readings ReadingRepository, timeout time.Duration) *QueryService {
	return &QueryService{
		readings: readings,
		logger:   noopLogger{},
		timeout:  timeout,
	}
}

// SetLogger sets the logger for the query service.
func (s *QueryService) SetLogger(logger Logger) {
	s.logger = logger
}

// Query returns the most recent readings matching the filter, newest
// first, with statistics computed over the returned page only.
//
// Never returns an error to the caller: a live-store failure produces a
// well-formed demo response flagged IsDemo.
func (s *QueryService) Query(ctx context.Context, filter Filter) *QueryResult {
	if filter.Limit <= 0 {
		filter.Limit = DefaultQueryLimit
	}
	if filter.Limit > MaxQueryLimit {
		filter.Limit = MaxQueryLimit
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	readings, err := s.readings.Query(ctx, filter)
	if err != nil {
		s.logger.Warn("reading query degraded to demo fallback",
			"error", fmt.Errorf("%w: %w", ErrLookupUnavailable, err),
		)

		demo := GenerateDemoSeries(time.Now().UTC())
		return &QueryResult{
			Readings: demo,
			Stats:    ComputeStats(demo),
			IsDemo:   true,
			Notice:   demoNotice,
		}
	}

	return &QueryResult{
		Readings: readings,
		Stats:    ComputeStats(readings),
	}
}

// ComputeStats summarises one page of readings. Temperature aggregates
// ignore readings without a temperature channel; when no reading carries
// one, the aggregates are absent rather than zero.
func ComputeStats(readings []EnrichedReading) Stats {
	stats := Stats{Count: len(readings)}

	var sum float64
	var tempCount int
	var minTemp, maxTemp float64

	for i := range readings {
		if readings[i].IsAlert {
			stats.AlertCount++
		}

		t := readings[i].Measurements.Temperature
		if t == nil {
			continue
		}
		if tempCount == 0 || *t < minTemp {
			minTemp = *t
		}
		if tempCount == 0 || *t > maxTemp {
			maxTemp = *t
		}
		sum += *t
		tempCount++
	}

	if tempCount > 0 {
		avg := sum / float64(tempCount)
		stats.AvgTemperature = &avg
		stats.MinTemperature = &minTemp
		stats.MaxTemperature = &maxTemp
	}

	return stats
}
