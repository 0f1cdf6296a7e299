package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"kwikflow/internal/automation"
	"kwikflow/internal/mail"
	"kwikflow/internal/metrics"
	"kwikflow/internal/outbox"
	"kwikflow/internal/repo"
)

// Enqueuer hands side effects to the outbox.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, payload any) error
}

// JobRegistrar binds outbox handlers.
type JobRegistrar interface {
	Register(kind string, h outbox.HandlerFunc)
}

// Mailer delivers rendered e-mail.
type Mailer interface {
	Configured() bool
	Send(ctx context.Context, msg mail.Message) error
}

// MessageSender relays text messages to a phone number.
type MessageSender interface {
	Configured() bool
	SendText(ctx context.Context, to, text string) (string, error)
}

// Deduper claims a key once per ttl.
type Deduper interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Dependencies are the collaborators the service needs. Metrics and Dedupe may be nil.
type Dependencies struct {
	Repo     repo.Repository
	Outbox   Enqueuer
	Mailer   Mailer
	WhatsApp MessageSender
	Composer mail.Composer
	Engine   *automation.Engine
	Dedupe   Deduper
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Options carries plain settings.
type Options struct {
	StorageDriver string
	// Location decides which calendar day counts as "today".
	Location  *time.Location
	DedupeTTL time.Duration
	Now       func() time.Time
}

// Service implements the contact-form and messaging use cases.
type Service struct {
	repo     repo.Repository
	outbox   Enqueuer
	mailer   Mailer
	whatsapp MessageSender
	composer mail.Composer
	engine   *automation.Engine
	dedupe   Deduper
	logger   *slog.Logger
	metrics  *metrics.Metrics

	storage   string
	loc       *time.Location
	dedupeTTL time.Duration
	now       func() time.Time
}

// New validates deps and returns a Service.
func New(deps Dependencies, opts Options) (*Service, error) {
	if deps.Repo == nil {
		return nil, errors.New("service: repository must not be nil")
	}
	if deps.Outbox == nil {
		return nil, errors.New("service: outbox must not be nil")
	}
	if deps.Engine == nil {
		return nil, errors.New("service: automation engine must not be nil")
	}
	if deps.Logger == nil {
		return nil, errors.New("service: logger must not be nil")
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ttl := opts.DedupeTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Service{
		repo:      deps.Repo,
		outbox:    deps.Outbox,
		mailer:    deps.Mailer,
		whatsapp:  deps.WhatsApp,
		composer:  deps.Composer,
		engine:    deps.Engine,
		dedupe:    deps.Dedupe,
		logger:    deps.Logger.With("component", "service"),
		metrics:   deps.Metrics,
		storage:   opts.StorageDriver,
		loc:       loc,
		dedupeTTL: ttl,
		now:       now,
	}, nil
}

// Health summarises which integrations are configured. It never exposes credentials.
type Health struct {
	Status             string `json:"status"`
	EmailConfigured    bool   `json:"emailConfigured"`
	WhatsAppConfigured bool   `json:"whatsappConfigured"`
	Storage            string `json:"storage"`
}

// Health reports integration status and storage reachability.
func (s *Service) Health(ctx context.Context) Health {
	status := "ok"
	if err := s.repo.Ping(ctx); err != nil {
		s.logger.Warn("storage ping failed", "error", err)
		status = "degraded"
	}
	return Health{
		Status:             status,
		EmailConfigured:    s.mailer != nil && s.mailer.Configured(),
		WhatsAppConfigured: s.whatsappReady(),
		Storage:            s.storage,
	}
}

func (s *Service) whatsappReady() bool {
	return s.whatsapp != nil && s.whatsapp.Configured()
}

// enqueue hands a job to the outbox. Failures are logged and counted, never returned.
func (s *Service) enqueue(ctx context.Context, kind string, payload any) {
	if err := s.outbox.Enqueue(ctx, kind, payload); err != nil {
		s.logger.Error("enqueue side effect", "kind", kind, "error", err)
		s.countError("outbox_enqueue")
	}
}

func (s *Service) countError(component string) {
	if s.metrics != nil {
		s.metrics.Errors.WithLabelValues(component).Inc()
	}
}
