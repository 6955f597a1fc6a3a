package autoupload

import (
	"context"
	"time"

	"github.com/janitor-project/janitord/internal/store"
)

// BackfillOptions configures a historical re-upload pass.
type BackfillOptions struct {
	Filter store.BackfillFilter
	// Delay is inserted between uploads, so a large backfill does not
	// hammer the upload host.
	Delay time.Duration
}

// Backfill iterates historical successful builds matching opts.Filter and
// re-runs the upload pipeline for each, sleeping opts.Delay between
// uploads. It stops at the first context cancellation.
func (u *Uploader) Backfill(ctx context.Context, st *store.Store, opts BackfillOptions) (ok, failed int, err error) {
	runs, err := st.ListSuccessfulRuns(ctx, opts.Filter)
	if err != nil {
		return 0, 0, err
	}

	for i, run := range runs {
		if ctx.Err() != nil {
			return ok, failed, ctx.Err()
		}
		ev := ResultEvent{
			RunID:    run.ID,
			Codebase: run.Codebase,
			Campaign: run.Campaign,
			Target:   "debian",
		}
		if uploadErr := u.ProcessResult(ctx, ev); uploadErr != nil {
			failed++
			u.logger.WithError(uploadErr).WithField("run_id", run.ID).Warn("backfill upload failed")
		} else {
			ok++
		}
		if i < len(runs)-1 && opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return ok, failed, ctx.Err()
			case <-time.After(opts.Delay):
			}
		}
	}
	return ok, failed, nil
}
