package service

import (
	"context"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/hspatel/fileshare/internal/objstore"
	appErr "github.com/hspatel/fileshare/internal/pkg/errors"
)

// Cleaner runs the deferred deletion check: a one-shot, in-process delayed
// task per download, never awaited by the request path. It is best effort;
// anything it misses is picked up by the periodic reclaim job.
type Cleaner struct {
	store     ShareStore
	blobs     objstore.Store
	delay     time.Duration
	exclusive bool
	wg        sync.WaitGroup
}

func NewCleaner(store ShareStore, blobs objstore.Store, delay time.Duration, exclusive bool) *Cleaner {
	if delay <= 0 {
		delay = 5 * time.Second
	}
	return &Cleaner{store: store, blobs: blobs, delay: delay, exclusive: exclusive}
}

// Schedule queues a cleanup check to run after the configured delay.
// Fire-and-forget: callers must not wait on it.
func (c *Cleaner) Schedule(fileID string) {
	c.wg.Add(1)
	time.AfterFunc(c.delay, func() {
		defer c.wg.Done()
		c.RunCheck(context.Background(), fileID)
	})
}

// RunCheck re-evaluates consumption and, once the share is marked deleted
// (by this check or an earlier one), removes the blob. Failures are logged
// and left for the reclaim sweep; deleting twice is harmless.
func (c *Cleaner) RunCheck(ctx context.Context, fileID string) {
	logger := logutil.GetLogger(ctx).With(zap.String("file_id", fileID))

	share, err := c.store.Get(ctx, fileID)
	if err != nil {
		if !appErr.IsNotFound(err) {
			logger.Error("cleanup check: fetch share failed", zap.Error(err))
		}
		return
	}

	deleted := share.Deleted
	if !deleted {
		transitioned, err := evaluateAndMarkDelete(ctx, c.store, fileID, c.exclusive)
		if err != nil {
			logger.Error("cleanup check: mark delete failed", zap.Error(err))
			return
		}
		deleted = transitioned
	}
	if !deleted {
		return
	}

	if err := c.blobs.Delete(ctx, fileID); err != nil {
		logger.Error("cleanup check: blob delete failed", zap.Error(err))
		return
	}
	logger.Info("share fully consumed, blob reclaimed")
}

// Wait blocks until all scheduled checks have run; test and shutdown hook.
func (c *Cleaner) Wait() {
	c.wg.Wait()
}
