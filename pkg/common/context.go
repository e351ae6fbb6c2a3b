package common

import (
	"context"
	"time"
)

// ContextKey represents a context key type
type ContextKey string

// Context keys
const (
	ContextKeyRequestID    ContextKey = "request_id"
	ContextKeyClientID     ContextKey = "client_id"
	ContextKeyConnectionID ContextKey = "connection_id"
	ContextKeyStartTime    ContextKey = "start_time"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(ContextKeyRequestID).(string)
	return requestID, ok
}

// WithClientID adds the protocol client ID to the context
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, ContextKeyClientID, clientID)
}

// GetClientID extracts the protocol client ID from the context
func GetClientID(ctx context.Context) (string, bool) {
	clientID, ok := ctx.Value(ContextKeyClientID).(string)
	return clientID, ok
}

// WithConnectionID adds the transport connection ID to the context
func WithConnectionID(ctx context.Context, connectionID string) context.Context {
	return context.WithValue(ctx, ContextKeyConnectionID, connectionID)
}

// GetConnectionID extracts the transport connection ID from the context
func GetConnectionID(ctx context.Context) (string, bool) {
	connectionID, ok := ctx.Value(ContextKeyConnectionID).(string)
	return connectionID, ok
}

// WithStartTime adds a start time to the context
func WithStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyStartTime, startTime)
}

// GetStartTime extracts the start time from the context
func GetStartTime(ctx context.Context) (time.Time, bool) {
	startTime, ok := ctx.Value(ContextKeyStartTime).(time.Time)
	return startTime, ok
}

// GetElapsedTime calculates elapsed time from the start time in the context
func GetElapsedTime(ctx context.Context) time.Duration {
	if startTime, ok := GetStartTime(ctx); ok {
		return time.Since(startTime)
	}
	return 0
}
