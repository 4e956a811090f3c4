package requestctx

import "context"

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	operatorKey  ctxKey = "operator"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}

// WithOperator records the authenticated operator's username.
func WithOperator(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, operatorKey, username)
}

func GetOperator(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(operatorKey).(string)
	return value, ok && value != ""
}
