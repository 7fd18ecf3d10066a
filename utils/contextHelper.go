package utils

import (
	"context"

	"github.com/mmdatafocus/jewelry_pos/appctx"
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.Value[string](ctx, appctx.ContextKeyToken)
}

func GetBusinessIdFromContext(ctx context.Context) (string, bool) {
	return appctx.Value[string](ctx, appctx.ContextKeyBusinessId)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.Value[int](ctx, appctx.ContextKeyUserId)
}

// GetUserNameFromContext returns the display name stamped on histories,
// receipts and orders.
func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.Value[string](ctx, appctx.ContextKeyUserName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.Value[string](ctx, appctx.ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, appctx.ContextKeyToken, token)
}

func SetUsernameInContext(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, appctx.ContextKeyUsername, username)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return context.WithValue(ctx, appctx.ContextKeyCorrelationId, correlationId)
}

// SetAdminInContext leaves queries made with ctx unscoped by the tenant guard.
func SetAdminInContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, appctx.ContextKeyIsAdmin, true)
	return context.WithValue(ctx, appctx.ContextKeySkipTenantScope, true)
}

// SessionContext builds the context a logged-in request carries. The
// session middleware overwrites the username with the login name.
func SessionContext(ctx context.Context, businessId string, userId int, userName string) context.Context {
	ctx = context.WithValue(ctx, appctx.ContextKeyBusinessId, businessId)
	ctx = context.WithValue(ctx, appctx.ContextKeyUserId, userId)
	ctx = context.WithValue(ctx, appctx.ContextKeyUserName, userName)
	return SetUsernameInContext(ctx, userName)
}
