package httpserver

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
	"github.com/LyndaLilly/alebaz-chat-api/internal/token"
)

// Logger emits one access log line per request. Bodies are never logged and
// the client IP is masked.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("dur", time.Since(start)),
			zap.String("client_ip", MaskIP(c.ClientIP())),
		}
		if kind := c.GetString(errorKindKey); kind != "" {
			fields = append(fields, zap.String("error_kind", kind))
		}
		if status >= http.StatusInternalServerError {
			log.Error("http", fields...)
			return
		}
		log.Info("http", fields...)
	}
}

// Recovery turns a panic into a 500 and logs the stack.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", c.Request.URL.Path),
				)
				c.Set(errorKindKey, "server")
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Message: "Server error"})
			}
		}()
		c.Next()
	}
}

// CORS adds cross-origin headers. "*" allows every origin.
func CORS(allowed []string) gin.HandlerFunc {
	origins := make(map[string]bool, len(allowed))
	allowAll := false
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
			break
		}
		origins[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origins[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin,Content-Type,Accept,Authorization")
			c.Header("Access-Control-Max-Age", "86400")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requireAuth resolves the bearer credential into a principal and rejects
// revoked tokens.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := token.FromHeader(c.GetHeader("Authorization"))
		if err != nil {
			s.fail(c, err)
			return
		}
		p, err := s.d.Tokens.Parse(raw)
		if err != nil {
			s.fail(c, err)
			return
		}
		revoked, err := s.d.Denylist.IsRevoked(c.Request.Context(), p.TokenID)
		if err != nil {
			s.fail(c, err)
			return
		}
		if revoked {
			s.fail(c, errs.ErrUnauthorized)
			return
		}
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}
