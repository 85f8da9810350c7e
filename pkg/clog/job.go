package clog

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// ContextWithJob opens an attribute scope for a background job so every
// record it logs carries the job name and a run id.
func ContextWithJob(ctx context.Context, job string) (context.Context, string) {
	runID := ulid.Make().String()
	ctx = ContextWithSlog(ctx)
	AddAttributes(ctx, map[string]any{
		"job":    job,
		"run_id": runID,
	})
	return ctx, runID
}
