package appctx

import "context"

// ContextKey types every value this service stores on a request context.
// config and utils both read these keys, so they live below either package.
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyToken         = ContextKey("Token")
	ContextKeyBusinessId    = ContextKey("BusinessId")
	ContextKeyUsername      = ContextKey("Username")
	ContextKeyUserId        = ContextKey("UserId")
	ContextKeyUserName      = ContextKey("UserName")
	ContextKeyCorrelationId = ContextKey("CorrelationId")
	ContextKeyIsAdmin       = ContextKey("IsAdmin")

	// set by cmd tools that work across businesses
	ContextKeySkipTenantScope = ContextKey("SkipTenantScope")
)

// Value reads key as a T; ok is false when it is missing or of another type.
func Value[T any](ctx context.Context, key ContextKey) (T, bool) {
	v, ok := ctx.Value(key).(T)
	return v, ok
}
