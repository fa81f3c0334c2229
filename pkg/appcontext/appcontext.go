// Package appcontext carries request-scoped identity. The acting user is
// resolved by the upstream auth service and passed explicitly; nothing in the
// pipeline reads identity from a global.
package appcontext

import "context"

type contextKey string

var (
	requestIDKey = contextKey("X-Request-Id")
	userIDKey    = contextKey("X-User-Id")
	routeKey     = contextKey("X-Route")
	remoteIPKey  = contextKey("X-Remote-Ip")
)

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	value, ok := ctx.Value(requestIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func GetUserID(ctx context.Context) string {
	value, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeKey, route)
}

func GetRoute(ctx context.Context) string {
	value, ok := ctx.Value(routeKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return context.WithValue(ctx, remoteIPKey, remoteIP)
}

func GetRemoteIP(ctx context.Context) string {
	value, ok := ctx.Value(remoteIPKey).(string)
	if !ok {
		return ""
	}
	return value
}
