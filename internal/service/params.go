package service

import (
	"context"
	"time"
)

// AckParams answers a fault prompt.
type AckParams struct {
	Resume bool // true continues the interrupted stage, false abandons the run
}

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "START", "STOP", "STAGE", "FAULT", "RESUME", "COMPLETE", "PROFILE", "ERROR", "COMMAND"
}

type operatorKey struct{}

// WithOperator tags ctx with the operator issuing a command, so the
// command log can attribute it.
func WithOperator(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, operatorKey{}, id)
}

// OperatorFrom returns the operator set by WithOperator.
func OperatorFrom(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(operatorKey{}).(int)
	return id, ok && id > 0
}
