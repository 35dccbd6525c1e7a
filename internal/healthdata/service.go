package healthdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/2beens/healthdash/internal/healthplanet"
	"github.com/2beens/healthdash/internal/telemetry/metrics"
	"github.com/2beens/healthdash/internal/telemetry/tracing"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	// a failed fetch is retried this many times with a fixed delay
	defaultMaxRetries = 3
	defaultRetryDelay = 5 * time.Second

	// ranges requested recently get refetched in the background on this
	// interval, so an open dashboard keeps showing fresh data
	defaultRevalidateInterval = 5 * time.Minute
)

// Fetcher is the upstream side of the orchestrator; implemented by
// healthplanet.Client, faked in tests.
type Fetcher interface {
	GetMeasurements(ctx context.Context, from, to string) ([]healthplanet.Measurement, error)
	RefreshMeasurements(ctx context.Context, from, to string) ([]healthplanet.Measurement, error)
}

// Service coordinates date range -> upstream fetch -> normalization.
// Concurrent requests for the same range are coalesced into one in-flight
// upstream call; failures are retried a bounded number of times before
// being surfaced.
type Service struct {
	fetcher Fetcher
	clock   clockwork.Clock
	metrics *metrics.Manager
	group   singleflight.Group

	maxRetries         int
	retryDelay         time.Duration
	revalidateInterval time.Duration

	mu           sync.Mutex
	activeRanges map[string]activeRange
}

type activeRange struct {
	filter      DateRangeFilter
	lastRequest time.Time
}

func NewService(
	fetcher Fetcher,
	clock clockwork.Clock,
	metricsManager *metrics.Manager,
) *Service {
	return &Service{
		fetcher:            fetcher,
		clock:              clock,
		metrics:            metricsManager,
		maxRetries:         defaultMaxRetries,
		retryDelay:         defaultRetryDelay,
		revalidateInterval: defaultRevalidateInterval,
		activeRanges:       make(map[string]activeRange),
	}
}

func rangeKey(filter DateRangeFilter) string {
	return fmt.Sprintf("%s::%s::%s", filter.Kind, filter.StartDate.APIDate(), filter.EndDate.APIDate())
}

// HealthData returns the canonical observation series for the filter's
// range, fetching from the upstream (or its cache) as needed.
func (s *Service) HealthData(ctx context.Context, filter DateRangeFilter) ([]Observation, error) {
	return s.coalescedFetch(ctx, filter, false)
}

// Refresh forces an out-of-band upstream fetch for the filter's range,
// bypassing the cached response. This is the manual re-fetch trigger the
// frontend exposes as its refresh button.
func (s *Service) Refresh(ctx context.Context, filter DateRangeFilter) ([]Observation, error) {
	return s.coalescedFetch(ctx, filter, true)
}

func (s *Service) coalescedFetch(ctx context.Context, filter DateRangeFilter, refresh bool) (_ []Observation, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "healthdata.service.fetch")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s.trackRange(filter)

	key := rangeKey(filter)
	if refresh {
		// a refresh must not be coalesced into a regular cache-first flight
		key = "refresh::" + key
	}

	resCh := s.group.DoChan(key, func() (any, error) {
		// detached from the caller's context: other callers coalesced onto
		// this flight may still want the result after this caller is gone
		return s.fetchAndNormalize(context.WithoutCancel(ctx), filter, refresh)
	})

	select {
	case <-ctx.Done():
		// caller torn down mid-fetch: the shared flight finishes on its
		// own, this caller just never sees the result
		return nil, ctx.Err()
	case res := <-resCh:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Observation), nil
	}
}

func (s *Service) fetchAndNormalize(ctx context.Context, filter DateRangeFilter, refresh bool) ([]Observation, error) {
	from := filter.StartDate.APIDate()
	to := filter.EndDate.APIDate()

	var raw []healthplanet.Measurement
	var err error
	for attempt := 0; ; attempt++ {
		if refresh {
			raw, err = s.fetcher.RefreshMeasurements(ctx, from, to)
		} else {
			raw, err = s.fetcher.GetMeasurements(ctx, from, to)
		}
		if err == nil {
			break
		}
		if attempt >= s.maxRetries {
			return nil, fmt.Errorf("fetch health data [%s - %s]: %w", from, to, err)
		}

		log.Warnf("fetch health data [%s - %s] failed (attempt %d), retrying in %s: %s",
			from, to, attempt+1, s.retryDelay, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.clock.After(s.retryDelay):
		}
	}

	return Normalize(raw)
}

// StartRevalidation runs the background refresh loop until ctx is done.
func (s *Service) StartRevalidation(ctx context.Context) {
	go func() {
		ticker := s.clock.NewTicker(s.revalidateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Debugln("health data revalidation loop stopped")
				return
			case <-ticker.Chan():
				s.revalidateActiveRanges(ctx)
			}
		}
	}()
}

func (s *Service) trackRange(filter DateRangeFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeRanges[rangeKey(filter)] = activeRange{
		filter:      filter,
		lastRequest: s.clock.Now(),
	}
}

func (s *Service) revalidateActiveRanges(ctx context.Context) {
	s.mu.Lock()
	filters := make([]DateRangeFilter, 0, len(s.activeRanges))
	for key, active := range s.activeRanges {
		// nobody asked for this range in a while - stop refreshing it
		if s.clock.Since(active.lastRequest) > 2*s.revalidateInterval {
			delete(s.activeRanges, key)
			continue
		}
		filters = append(filters, active.filter)
	}
	s.mu.Unlock()

	for _, filter := range filters {
		if _, err := s.fetchAndNormalize(ctx, filter, true); err != nil {
			log.Errorf("revalidate health data [%s]: %s", rangeKey(filter), err)
			continue
		}
		s.metrics.CounterRevalidations.Inc()
		log.Tracef("revalidated health data [%s]", rangeKey(filter))
	}
}
