package clog

import (
	"context"
	"maps"
	"sync"
)

// attrBag is a mutable set of log attributes shared by everything that runs
// under one request or job context.
type attrBag struct {
	mu         sync.RWMutex
	attributes map[string]any
}

type attrBagKey struct{}

// ContextWithSlog opens a fresh attribute scope. Attributes added to the
// returned context (or any context derived from it) are attached to every
// record logged with it through AttributesHandler.
func ContextWithSlog(ctx context.Context) context.Context {
	return context.WithValue(ctx, attrBagKey{}, &attrBag{attributes: make(map[string]any)})
}

func bagFrom(ctx context.Context) *attrBag {
	b, _ := ctx.Value(attrBagKey{}).(*attrBag)
	return b
}

func AddAttribute(ctx context.Context, key string, value any) {
	b := bagFrom(ctx)
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attributes[key] = value
}

func AddAttributes(ctx context.Context, attributes map[string]any) {
	b := bagFrom(ctx)
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	mergeMaps(b.attributes, attributes)
}

func GetAttribute[T any](ctx context.Context, key string) T {
	var zero T
	b := bagFrom(ctx)
	if b == nil {
		return zero
	}
	b.mu.RLock()
	v, ok := b.attributes[key]
	b.mu.RUnlock()
	if !ok {
		return zero
	}
	typed, ok := v.(T)
	if !ok {
		return zero
	}
	return typed
}

// GetAttributes returns a copy of the scope's attributes, nil outside a scope.
func GetAttributes(ctx context.Context) map[string]any {
	b := bagFrom(ctx)
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.attributes)
}

func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		vMap, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		if dstMap, ok := dst[k].(map[string]any); ok {
			mergeMaps(dstMap, vMap)
		} else {
			dst[k] = vMap
		}
	}
}

const (
	ErrorAttributeKey = "error.message"
	StackAttributeKey = "error.stack"
)

func AddError(ctx context.Context, err error) {
	AddAttribute(ctx, ErrorAttributeKey, err)
}

func GetError(ctx context.Context) error {
	return GetAttribute[error](ctx, ErrorAttributeKey)
}

func AddStack(ctx context.Context, stack string) {
	AddAttribute(ctx, StackAttributeKey, stack)
}
