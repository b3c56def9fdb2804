package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/multierr"

	"github.com/angelmondragon/erpcore/pkg/config"
	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/logger"
	"github.com/angelmondragon/erpcore/pkg/metrics"
	"github.com/angelmondragon/erpcore/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

var (
	jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

	errBreakerOpen = errors.New("publisher circuit open")
)

type pinger interface {
	Ping(context.Context) error
}

type publisher interface {
	pinger
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
}

type deliveryRepository interface {
	FetchPendingForPublish(ctx context.Context, limit int) ([]models.Event, error)
	MarkPublished(ctx context.Context, eventID uuid.UUID) error
	MarkFailed(ctx context.Context, eventID uuid.UUID, cause error) (int, error)
	MarkTerminal(ctx context.Context, eventID uuid.UUID, cause error) error
}

type registryResolver interface {
	Resolve(models.Event) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         pinger
	Publisher  publisher
	Repository deliveryRepository
	Registry   registryResolver
	Metrics    *metrics.PublisherMetrics
}

// Service relays committed events to Pub/Sub. Delivery state lives beside the
// events table so the events themselves are never rewritten.
type Service struct {
	logg         *logger.Logger
	db           pinger
	pub          publisher
	repo         deliveryRepository
	registry     registryResolver
	metrics      *metrics.PublisherMetrics
	breaker      *gobreaker.CircuitBreaker
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if params.Repository == nil {
		return nil, errors.New("delivery repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.Outbox.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	s := &Service{
		logg:         params.Logger,
		db:           params.DB,
		pub:          params.Publisher,
		repo:         params.Repository,
		registry:     params.Registry,
		metrics:      params.Metrics,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
	}
	s.breaker = newBreaker(params.Config.Breaker, s.onBreakerChange)
	return s, nil
}

func newBreaker(cfg config.BreakerConfig, onChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "pubsub-publish",
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: onChange,
	})
}

func (s *Service) onBreakerChange(name string, from, to gobreaker.State) {
	s.metrics.SetBreakerState(int(to))
	ctx := s.logg.WithFields(context.Background(), map[string]any{
		"breaker": name,
		"from":    from.String(),
		"to":      to.String(),
	})
	s.logg.Warn(ctx, "outbox breaker state changed")
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	return pingDependency(ctx, s.logg, "pubsub", s.pub.Ping)
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	interval := s.pollInterval
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox publisher context canceled")
			return ctx.Err()
		default:
		}

		processed, err := s.processBatch(ctx)
		if err != nil {
			if errors.Is(err, errBreakerOpen) {
				s.logg.Warn(ctx, "outbox publisher paused while breaker is open")
			} else {
				s.logg.Error(ctx, "outbox publisher batch error", err)
			}
			backoff = nextBackoff(backoff, interval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval
		if processed {
			continue
		}
		if err := s.sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

// processBatch publishes one page of pending events. Once an aggregate fails,
// its later events wait for the next batch so subscribers see them in order.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	events, err := s.repo.FetchPendingForPublish(ctx, s.batchSize)
	if err != nil {
		return false, fmt.Errorf("fetch pending events: %w", err)
	}
	if len(events) == 0 {
		return false, nil
	}

	var errs error
	blocked := make(map[uuid.UUID]struct{})
	for _, event := range events {
		if _, ok := blocked[event.AggregateID]; ok {
			continue
		}

		resolved, err := s.registry.Resolve(event)
		if err != nil {
			errs = multierr.Append(errs, s.park(ctx, event, "", err))
			continue
		}

		fields := s.eventFields(event, resolved.Descriptor.Topic)
		err = s.publish(ctx, event, resolved)
		switch {
		case err == nil:
			if markErr := s.repo.MarkPublished(ctx, event.ID); markErr != nil {
				errs = multierr.Append(errs, fmt.Errorf("mark published %s: %w", event.ID, markErr))
				blocked[event.AggregateID] = struct{}{}
				continue
			}
			s.metrics.IncPublished(string(event.EventType))
			s.logg.Debug(s.logg.WithFields(ctx, fields), "outbox event published")
		case errors.Is(err, errBreakerOpen):
			return true, multierr.Append(errs, err)
		case isNonRetryable(err):
			errs = multierr.Append(errs, s.park(ctx, event, resolved.Descriptor.Topic, err))
		default:
			blocked[event.AggregateID] = struct{}{}
			errs = multierr.Append(errs, s.retryLater(ctx, event, fields, err))
		}
	}
	return true, errs
}

func (s *Service) retryLater(ctx context.Context, event models.Event, fields map[string]any, cause error) error {
	attempts, err := s.repo.MarkFailed(ctx, event.ID, cause)
	if err != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	s.metrics.IncFailed(string(event.EventType))
	fields["attempt_count"] = attempts
	if attempts >= s.maxAttempts {
		return s.park(ctx, event, "", fmt.Errorf("max publish attempts reached: %w", cause))
	}
	logCtx := s.logg.WithFields(ctx, fields)
	s.logg.Warn(s.logg.WithField(logCtx, "error", cause.Error()), "outbox publish failed")
	return nil
}

// park marks the event terminal. It stays in the events table for audit.
func (s *Service) park(ctx context.Context, event models.Event, topic string, cause error) error {
	logCtx := s.logg.WithFields(ctx, s.eventFields(event, topic))
	s.logg.Warn(s.logg.WithField(logCtx, "error", cause.Error()), "outbox event will not be retried")
	if err := s.repo.MarkTerminal(ctx, event.ID, cause); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	s.metrics.IncTerminal(string(event.EventType))
	return nil
}

func (s *Service) publish(ctx context.Context, event models.Event, resolved *registry.ResolvedEvent) error {
	attrs := map[string]string{
		"event_id":       event.ID.String(),
		"event_type":     string(event.EventType),
		"tenant_id":      event.TenantID.String(),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"occurred_at":    event.OccurredAt.UTC().Format(time.RFC3339Nano),
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return s.pub.Publish(publishCtx, resolved.Descriptor.Topic, resolved.Body, attrs)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errBreakerOpen
	}
	return err
}

func isNonRetryable(err error) bool {
	var nonRetry registry.NonRetryableError
	return errors.As(err, &nonRetry)
}

func (s *Service) eventFields(event models.Event, topic string) map[string]any {
	fields := map[string]any{
		"event_id":       event.ID.String(),
		"event_type":     event.EventType,
		"tenant_id":      event.TenantID.String(),
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"batch_size":     s.batchSize,
	}
	if topic != "" {
		fields["topic"] = topic
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > ceiling {
		return ceiling
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}
