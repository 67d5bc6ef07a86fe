// Package web provides the HTTP plumbing shared by handlers: request
// context ids, JSON responses with a consistent envelope, bind plus
// validation, and the standard middleware stack
package web

import "context"

type ctxKey uint8

const (
	keyRequestID ctxKey = iota
	keyTenantID
)

// WithRequest annotates ctx with the request scoped ids
func WithRequest(ctx context.Context, reqID string, tenantID int64) context.Context {
	if reqID != "" {
		ctx = context.WithValue(ctx, keyRequestID, reqID)
	}
	if tenantID != 0 {
		ctx = context.WithValue(ctx, keyTenantID, tenantID)
	}
	return ctx
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(keyRequestID).(string); ok {
		return v
	}
	return ""
}

// TenantID returns the tenant id on the context, 0 when absent
func TenantID(ctx context.Context) int64 {
	if v, ok := ctx.Value(keyTenantID).(int64); ok {
		return v
	}
	return 0
}
