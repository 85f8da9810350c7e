// Package panicerr turns panics inside a unit of work into ordinary errors so
// one misbehaving item cannot take a whole batch down with it.
package panicerr

import (
	"context"

	"github.com/sourcegraph/conc/panics"
)

// Run calls fn and returns its error, or the recovered panic as an error.
func Run(fn func() error) error {
	var (
		catcher panics.Catcher
		err     error
	)
	catcher.Try(func() {
		err = fn()
	})
	if r := catcher.Recovered(); r != nil {
		return r.AsError()
	}
	return err
}

// Safe wraps fn so that calling the result never panics.
func Safe(fn func() error) func() error {
	return func() error {
		return Run(fn)
	}
}

// SafeContext is Safe for functions taking a context.
func SafeContext(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return Run(func() error { return fn(ctx) })
	}
}
