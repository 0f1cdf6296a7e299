package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"kwikflow/internal/metrics"
	"kwikflow/internal/repo"
	"kwikflow/internal/service"
	"kwikflow/internal/whatsapp"
)

// Service is the application API the handlers call.
type Service interface {
	Authenticator

	Health(ctx context.Context) service.Health
	Statistics(ctx context.Context) (service.Statistics, error)

	SubmitConsultation(ctx context.Context, in repo.NewConsultationRequest) (*repo.ConsultationRequest, error)
	SubmitLead(ctx context.Context, in repo.NewLead) (*repo.Lead, error)
	ListConsultationRequests(ctx context.Context) ([]repo.ConsultationRequest, error)
	ListLeads(ctx context.Context) ([]repo.Lead, error)

	ListConversations(ctx context.Context) ([]repo.Conversation, error)
	GetConversation(ctx context.Context, id int64) (*repo.Conversation, error)
	CreateConversation(ctx context.Context, in repo.NewConversation) (*repo.Conversation, error)
	UpdateConversation(ctx context.Context, id int64, patch repo.ConversationPatch) (*repo.Conversation, error)
	ListMessages(ctx context.Context, conversationID int64) ([]repo.Message, error)
	CreateMessage(ctx context.Context, in repo.NewMessage) (*repo.Message, error)

	ListSessions(ctx context.Context, conversationID *int64) ([]repo.Session, error)
	CreateSession(ctx context.Context, in repo.NewSession) (*repo.Session, error)
	UpdateSession(ctx context.Context, id int64, patch repo.SessionPatch) (*repo.Session, error)

	ListAutomationRules(ctx context.Context) ([]repo.AutomationRule, error)
	GetAutomationRule(ctx context.Context, id int64) (*repo.AutomationRule, error)
	CreateAutomationRule(ctx context.Context, in repo.NewAutomationRule) (*repo.AutomationRule, error)
	UpdateAutomationRule(ctx context.Context, id int64, patch repo.AutomationRulePatch) (*repo.AutomationRule, error)
	DeleteAutomationRule(ctx context.Context, id int64) error

	IngestInbound(ctx context.Context, msgs []whatsapp.InboundMessage) service.IngestResult
}

type handlers struct {
	svc     Service
	logger  *slog.Logger
	metrics *metrics.Metrics

	verifyToken string
	appSecret   string
}

func newRouter(opts Options, svc Service, logger *slog.Logger, metricRegistry *metrics.Metrics) *gin.Engine {
	registerValidators()

	r := gin.New()
	r.Use(
		recovery(logger),
		requestID(),
		accessLog(logger),
		requestMetrics(metricRegistry),
		cors(opts.CORSOrigins),
		bodyLimit(opts.MaxBodyBytes),
	)

	h := &handlers{
		svc:         svc,
		logger:      logger,
		metrics:     metricRegistry,
		verifyToken: opts.WebhookVerifyToken,
		appSecret:   opts.WebhookAppSecret,
	}

	api := r.Group("/api")
	api.GET("/health", h.health)

	manage := api.Group("")
	if opts.RequireAuth {
		manage.Use(basicAuth(svc, logger))
	}

	if opts.FormsEnabled {
		limiter := newClientLimiter(opts.FormRate, opts.FormBurst)
		api.POST("/consultation-requests", limiter.middleware(), h.createConsultation)
		api.POST("/leads", limiter.middleware(), h.createLead)
		manage.GET("/consultation-requests", h.listConsultations)
		manage.GET("/leads", h.listLeads)
	}

	if opts.MessagingEnabled {
		api.GET("/webhook/whatsapp", h.verifyWebhook)
		api.POST("/webhook/whatsapp", h.receiveWebhook)

		manage.GET("/conversations", h.listConversations)
		manage.POST("/conversations", h.createConversation)
		manage.GET("/conversations/:id", h.getConversation)
		manage.PATCH("/conversations/:id", h.updateConversation)
		manage.GET("/conversations/:id/messages", h.listMessages)
		manage.POST("/messages", h.createMessage)

		manage.GET("/automation-rules", h.listRules)
		manage.POST("/automation-rules", h.createRule)
		manage.GET("/automation-rules/:id", h.getRule)
		manage.PATCH("/automation-rules/:id", h.updateRule)
		manage.DELETE("/automation-rules/:id", h.deleteRule)

		manage.GET("/sessions", h.listSessions)
		manage.POST("/sessions", h.createSession)
		manage.PATCH("/sessions/:id", h.updateSession)

		manage.GET("/statistics", h.statistics)
	}

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "Not found")
	})
	return r
}
