package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxOperator ctxKey = iota
	ctxScope
)

func WithIdentity(ctx context.Context, operator, scope string) context.Context {
	ctx = context.WithValue(ctx, ctxOperator, operator)
	ctx = context.WithValue(ctx, ctxScope, scope)
	return ctx
}

func Operator(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxOperator).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("operator not in context")
}

func Scope(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxScope).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("scope not in context")
}
