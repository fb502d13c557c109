package httpserver

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
)

type ctxKey string

const principalKey ctxKey = "alebaz.principal"

// WithPrincipal stores the authenticated caller in ctx.
func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromCtx fetches the authenticated caller from ctx.
func PrincipalFromCtx(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(model.Principal)
	return p, ok
}

func principal(c *gin.Context) model.Principal {
	p, _ := PrincipalFromCtx(c.Request.Context())
	return p
}
