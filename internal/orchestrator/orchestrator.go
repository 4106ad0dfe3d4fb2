// Package orchestrator sequences a submission end to end: validate, pick a
// strategy, retry or fall back, record the lifecycle change, archive and
// call the reminder hooks. It is the only layer that decides between retry,
// fallback and surfacing a failure.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	archivemodels "entrypass/internal/archive/models"
	archive "entrypass/internal/archive/service"
	"entrypass/internal/destination"
	"entrypass/internal/entry/models"
	"entrypass/internal/notification"
	"entrypass/internal/platform/metrics"
	"entrypass/internal/submission/failure"
	"entrypass/internal/submission/strategy"
	"entrypass/internal/submission/validation"
	"entrypass/internal/traveler"
	id "entrypass/pkg/domain"
	"entrypass/pkg/platform/circuit"
	"entrypass/pkg/platform/clock"
)

const tracerName = "entrypass/orchestrator"

// EntryService is the lifecycle surface the orchestrator drives.
type EntryService interface {
	GetEntryInfo(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryInfo, error)
	GetPack(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryPack, error)
	UpdateCompletion(ctx context.Context, entryInfoID id.EntryInfoID, metrics models.CompletionMetrics) (*models.EntryInfo, models.EntryInfoStatus, error)
	FindOrCreate(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryPack, error)
	RecordSubmissionFailure(ctx context.Context, packID id.EntryPackID, method models.SubmissionMethod, result *failure.ErrorResult) (*models.EntryPack, error)
	StageSubmission(ctx context.Context, entryInfoID id.EntryInfoID, sub models.ArrivalCardSubmission) error
	FinalizeRecentSubmission(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryPack, bool, error)
	MarkSuperseded(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryPack, error)
	ExpireIfOverdue(ctx context.Context, entryInfoID id.EntryInfoID, deadline time.Time) (bool, error)
	Archive(ctx context.Context, entryInfoID id.EntryInfoID, reason string) (*models.EntryInfo, *models.EntryPack, error)
}

type TravelerStore interface {
	Save(ctx context.Context, data traveler.Data) error
	Get(ctx context.Context, entryInfoID id.EntryInfoID) (traveler.Data, error)
}

type Archiver interface {
	CreateSnapshot(ctx context.Context, req archive.Request) (*archivemodels.Snapshot, error)
}

type Destinations interface {
	Get(destinationID string) (destination.Config, error)
}

// Deps are the constructed collaborators. Strategies are keyed by their
// own Method().
type Deps struct {
	Entries      EntryService
	Travelers    TravelerStore
	Archiver     Archiver
	Destinations Destinations
	Validator    *validation.Validator
	Classifier   *failure.Classifier
	Notifier     notification.Notifier
	Strategies   []strategy.Strategy
}

// Config holds the submission policy.
type Config struct {
	DefaultMethod  models.SubmissionMethod
	FallbackMethod models.SubmissionMethod
	// AutoFallback runs the fallback method instead of only offering it.
	AutoFallback bool
	// MaxRetries bounds automatic retries of one method; the first attempt
	// is not counted.
	MaxRetries      int
	ArchiveOnSubmit bool
	BreakerFailures int
	BreakerCooldown time.Duration
}

func DefaultConfig() Config {
	return Config{
		DefaultMethod:   models.MethodHybrid,
		FallbackMethod:  models.MethodWebView,
		MaxRetries:      2,
		BreakerFailures: 3,
		BreakerCooldown: 2 * time.Minute,
	}
}

type Orchestrator struct {
	entries      EntryService
	travelers    TravelerStore
	archiver     Archiver
	destinations Destinations
	validator    *validation.Validator
	classifier   *failure.Classifier
	notifier     notification.Notifier
	strategies   map[models.SubmissionMethod]strategy.Strategy
	breakers     map[models.SubmissionMethod]*circuit.Breaker
	cfg          Config
	clock        clock.Clock
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
}

type Option func(*Orchestrator)

func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

func New(deps Deps, cfg Config, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	if cfg.DefaultMethod == "" {
		cfg.DefaultMethod = def.DefaultMethod
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = def.BreakerCooldown
	}

	o := &Orchestrator{
		entries:      deps.Entries,
		travelers:    deps.Travelers,
		archiver:     deps.Archiver,
		destinations: deps.Destinations,
		validator:    deps.Validator,
		classifier:   deps.Classifier,
		notifier:     deps.Notifier,
		strategies:   make(map[models.SubmissionMethod]strategy.Strategy, len(deps.Strategies)),
		breakers:     make(map[models.SubmissionMethod]*circuit.Breaker, len(deps.Strategies)),
		cfg:          cfg,
		clock:        clock.Real(),
		logger:       slog.Default(),
		tracer:       otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.notifier == nil {
		o.notifier = notification.NewLogNotifier(notification.WithLogger(o.logger))
	}
	for _, s := range deps.Strategies {
		method := s.Method()
		o.strategies[method] = s
		o.breakers[method] = circuit.New(string(method),
			circuit.WithFailureThreshold(cfg.BreakerFailures),
			circuit.WithSuccessThreshold(1),
			circuit.WithCooldown(cfg.BreakerCooldown),
			circuit.WithClock(o.clock),
		)
	}
	return o
}
