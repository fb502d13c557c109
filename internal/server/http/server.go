// Package httpserver exposes the JSON HTTP API on gin.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
	"github.com/LyndaLilly/alebaz-chat-api/internal/service"
	"github.com/LyndaLilly/alebaz-chat-api/internal/token"
)

const healthTimeout = 2 * time.Second

// TokenParser turns a bearer credential into a principal.
type TokenParser interface {
	Parse(tok string) (model.Principal, error)
}

// Pinger reports whether a dependency answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps collects what the HTTP layer talks to.
type Deps struct {
	Onboarding    service.OnboardingService
	Search        service.SearchService
	Conversations service.ConversationService
	Messages      service.MessageService

	Tokens   TokenParser
	Denylist token.Denylist
	DB       Pinger

	Log          *zap.Logger
	Metrics      *HTTPMetrics
	Gatherer     prometheus.Gatherer
	UploadDir    string
	AllowOrigins []string
}

// Server wires services into gin handlers.
type Server struct {
	d       Deps
	schemas map[string]*gojsonschema.Schema
	engine  *gin.Engine
}

// New builds the router. Log, Denylist and Gatherer fall back to defaults.
func New(d Deps) (*Server, error) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Denylist == nil {
		d.Denylist = token.NopDenylist{}
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	schemas, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	s := &Server{d: d, schemas: schemas}
	s.engine = s.routes()
	return s, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(Recovery(s.d.Log), Logger(s.d.Log), s.d.Metrics.Handler(), CORS(s.d.AllowOrigins))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Message: "Not found"})
	})

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.d.Gatherer, promhttp.HandlerOpts{})))
	if s.d.UploadDir != "" {
		r.Static("/uploads", s.d.UploadDir)
	}

	api := r.Group("/api")
	clients := api.Group("/clients")
	{
		clients.POST("/start-email", s.startEmail)
		clients.POST("/verify-email", s.verifyEmail)
		clients.POST("/resend-email", s.resendEmail)
		clients.POST("/save-profile", s.saveProfile)
		clients.POST("/save-phone-pin", s.savePhonePin)
		clients.POST("/login", s.login)
	}

	authed := api.Group("", s.requireAuth())
	{
		authed.GET("/me", s.me)
		authed.GET("/client/me", s.me)
		authed.POST("/logout", s.logout)
		authed.GET("/client/search", s.search)

		authed.POST("/conversations/dm", s.createDM)
		authed.GET("/conversations", s.listConversations)
		authed.GET("/conversations/:id/messages", s.listMessages)
		authed.POST("/conversations/:id/messages", s.sendMessage)
		authed.POST("/conversations/:id/clear", s.clearConversation)
		authed.POST("/conversations/:id/hide", s.hideConversation)
		authed.POST("/conversations/:id/unhide", s.unhideConversation)
	}
	return r
}

func (s *Server) health(c *gin.Context) {
	if s.d.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := s.d.DB.Ping(ctx); err != nil {
			s.d.Log.Warn("health: database unreachable", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": "ok"})
}
