package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quotes-api/internal/domain"
	"github.com/jsamuelsen/quotes-api/internal/ports"
)

const instrumentationName = "github.com/jsamuelsen/quotes-api/telemetry"

// Outcomes recorded on quotes.store.duration.
const (
	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

// InstrumentedStore decorates a QuoteStore with a client span and a duration
// sample per call. Not-found is an outcome, not a span error.
type InstrumentedStore struct {
	next     ports.QuoteStore
	backend  attribute.KeyValue
	tracer   trace.Tracer
	duration metric.Float64Histogram
}

var _ ports.QuoteStore = (*InstrumentedStore)(nil)

// InstrumentStore wraps next. backend names the store implementation
// ("memory", "postgrest", "postgres") on every span and sample.
func InstrumentStore(
	next ports.QuoteStore,
	backend string,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*InstrumentedStore, error) {
	duration, err := mp.Meter(instrumentationName).Float64Histogram(
		"quotes.store.duration",
		metric.WithDescription("Duration of quote store operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStore{
		next:     next,
		backend:  attribute.String("quotes.store.backend", backend),
		tracer:   tp.Tracer(instrumentationName),
		duration: duration,
	}, nil
}

func (s *InstrumentedStore) observe(ctx context.Context, op string, fn func(context.Context) error, attrs ...attribute.KeyValue) {
	ctx, span := s.tracer.Start(ctx, "quotes.store."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(attrs, s.backend)...),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	outcome := outcomeOK

	switch {
	case err == nil:
	case domain.IsNotFound(err):
		outcome = outcomeNotFound
	default:
		outcome = outcomeError

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	s.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("quotes.store.operation", op),
		attribute.String("quotes.store.outcome", outcome),
		s.backend,
	))
}

// Find implements ports.QuoteStore.
func (s *InstrumentedStore) Find(ctx context.Context, q domain.Query) ([]domain.Quote, error) {
	var (
		out []domain.Quote
		err error
	)

	s.observe(ctx, "find", func(ctx context.Context) error {
		out, err = s.next.Find(ctx, q)
		return err
	},
		attribute.Int("quotes.query.clauses", len(q.Clauses)),
		attribute.Bool("quotes.query.search", q.Search != nil),
		attribute.Int("quotes.query.limit", q.Page.Limit),
		attribute.Int("quotes.query.offset", q.Page.Offset),
	)

	return out, err
}

// Get implements ports.QuoteStore.
func (s *InstrumentedStore) Get(ctx context.Context, id string) (*domain.Quote, error) {
	var (
		out *domain.Quote
		err error
	)

	s.observe(ctx, "get", func(ctx context.Context) error {
		out, err = s.next.Get(ctx, id)
		return err
	}, attribute.String("quotes.id", id))

	return out, err
}

// Count implements ports.QuoteStore.
func (s *InstrumentedStore) Count(ctx context.Context) (int, error) {
	var (
		out int
		err error
	)

	s.observe(ctx, "count", func(ctx context.Context) error {
		out, err = s.next.Count(ctx)
		return err
	})

	return out, err
}

// Insert implements ports.QuoteStore.
func (s *InstrumentedStore) Insert(ctx context.Context, in domain.NewQuote) (*domain.Quote, error) {
	var (
		out *domain.Quote
		err error
	)

	s.observe(ctx, "insert", func(ctx context.Context) error {
		out, err = s.next.Insert(ctx, in)
		return err
	})

	return out, err
}

// Update implements ports.QuoteStore.
func (s *InstrumentedStore) Update(ctx context.Context, id string, patch domain.QuotePatch) (*domain.Quote, error) {
	var (
		out *domain.Quote
		err error
	)

	s.observe(ctx, "update", func(ctx context.Context) error {
		out, err = s.next.Update(ctx, id, patch)
		return err
	}, attribute.String("quotes.id", id))

	return out, err
}

// Delete implements ports.QuoteStore.
func (s *InstrumentedStore) Delete(ctx context.Context, id string) (*domain.Quote, error) {
	var (
		out *domain.Quote
		err error
	)

	s.observe(ctx, "delete", func(ctx context.Context) error {
		out, err = s.next.Delete(ctx, id)
		return err
	}, attribute.String("quotes.id", id))

	return out, err
}
