package job

import (
	"context"
	"time"

	"github.com/hspatel/fileshare/internal/service"
)

// ReclaimSource lists file ids worth re-checking: consumed shares whose
// delete never fired, and tombstones newer than the cutoff whose blob
// delete may have failed.
type ReclaimSource interface {
	ListReclaimable(ctx context.Context, deletedSince int64) ([]string, error)
}

// ReclaimJob periodically retries cleanup the best-effort deferred path
// missed. Tombstones older than keepAge are left alone.
type ReclaimJob struct {
	shares  ReclaimSource
	cleaner *service.Cleaner
	keepAge time.Duration
}

func NewReclaimJob(shares ReclaimSource, cleaner *service.Cleaner, keepAge time.Duration) *ReclaimJob {
	return &ReclaimJob{shares: shares, cleaner: cleaner, keepAge: keepAge}
}

func (j *ReclaimJob) Name() string {
	return "share_reclaim"
}

func (j *ReclaimJob) Run(ctx context.Context) error {
	if j.shares == nil || j.cleaner == nil {
		return nil
	}
	keepAge := j.keepAge
	if keepAge <= 0 {
		keepAge = 7 * 24 * time.Hour
	}
	cutoff := time.Now().Add(-keepAge).Unix()
	ids, err := j.shares.ListReclaimable(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, id := range ids {
		j.cleaner.RunCheck(ctx, id)
	}
	return nil
}
