package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/hspatel/fileshare/internal/model"
	"github.com/hspatel/fileshare/internal/objstore"
	appErr "github.com/hspatel/fileshare/internal/pkg/errors"
)

// ShareStore is the record-store port. MarkClicked and MarkDeleted must be
// field-scoped atomic updates, not read-modify-write on a cached copy.
type ShareStore interface {
	Create(ctx context.Context, share *model.Share) error
	Get(ctx context.Context, fileID string) (*model.Share, error)
	MarkClicked(ctx context.Context, fileID, email string) error
	MarkDeleted(ctx context.Context, fileID string) (bool, error)
}

type Options struct {
	URLTTL        time.Duration
	PublicBaseURL string
	// Exclusive retires the share on the first download instead of
	// waiting for every recipient.
	Exclusive bool
}

type ShareService struct {
	store    ShareStore
	blobs    objstore.Store
	notifier Notifier
	cleaner  *Cleaner
	opts     Options
}

func NewShareService(store ShareStore, blobs objstore.Store, notifier Notifier, cleaner *Cleaner, opts Options) *ShareService {
	if opts.URLTTL <= 0 {
		opts.URLTTL = time.Hour
	}
	return &ShareService{store: store, blobs: blobs, notifier: notifier, cleaner: cleaner, opts: opts}
}

type CreateResult struct {
	Share    *model.Share
	Notified bool
}

// CreateShare stores the blob, then the record, then emails each recipient
// a download link. A record-insert failure after a successful blob write
// triggers a compensating blob delete so no orphan is left behind.
func (s *ShareService) CreateShare(ctx context.Context, r io.Reader, size int64, fileName string, recipients []string) (*CreateResult, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, appErr.ErrInvalid
	}
	normalized := normalizeRecipients(recipients)
	if len(normalized) == 0 {
		// A share nobody can claim would be "fully consumed" at birth and
		// reclaimed seconds after upload; reject instead.
		return nil, appErr.ErrInvalid
	}

	fileID := uuid.NewString()
	if err := s.blobs.Put(ctx, fileID, r, size); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	clicks := make(map[string]bool, len(normalized))
	for _, email := range normalized {
		clicks[email] = false
	}
	share := &model.Share{
		FileID:      fileID,
		FileName:    fileName,
		Recipients:  normalized,
		ClickStatus: clicks,
		UploadedAt:  time.Now().Unix(),
		Deleted:     false,
	}
	if err := s.store.Create(ctx, share); err != nil {
		if delErr := s.blobs.Delete(ctx, fileID); delErr != nil {
			logutil.GetLogger(ctx).Error("orphaned blob: compensating delete failed",
				zap.String("file_id", fileID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("store share record: %w", err)
	}

	return &CreateResult{Share: share, Notified: s.notifyRecipients(ctx, share)}, nil
}

func (s *ShareService) notifyRecipients(ctx context.Context, share *model.Share) bool {
	if s.notifier == nil {
		return false
	}
	notified := true
	for _, email := range share.Recipients {
		link := s.downloadLink(share.FileID, email)
		if err := s.notifier.Notify(ctx, email, share.FileName, link, s.opts.URLTTL); err != nil {
			logutil.GetLogger(ctx).Error("notify recipient failed",
				zap.String("file_id", share.FileID), zap.String("email", email), zap.Error(err))
			notified = false
		}
	}
	return notified
}

func (s *ShareService) downloadLink(fileID, email string) string {
	base := strings.TrimSuffix(s.opts.PublicBaseURL, "/")
	return fmt.Sprintf("%s/api/v1/download/%s?email=%s", base, fileID, url.QueryEscape(email))
}

func (s *ShareService) GetShare(ctx context.Context, fileID string) (*model.Share, error) {
	return s.store.Get(ctx, fileID)
}

// RegisterClick marks one recipient's download. Repeat clicks by the same
// recipient are no-ops, not errors.
func (s *ShareService) RegisterClick(ctx context.Context, fileID, email string) error {
	return s.store.MarkClicked(ctx, fileID, normalizeEmail(email))
}

func (s *ShareService) IsFullyConsumed(share *model.Share) bool {
	return fullyConsumed(share.ClickStatus, s.opts.Exclusive)
}

// EvaluateAndMarkDelete is the single decision point for "this share's
// content lifetime is over". It reports whether this call performed the
// false -> true transition.
func (s *ShareService) EvaluateAndMarkDelete(ctx context.Context, fileID string) (bool, error) {
	return evaluateAndMarkDelete(ctx, s.store, fileID, s.opts.Exclusive)
}

// ResolveDownload authorizes the request, registers the click best-effort,
// schedules the deferred cleanup check and returns a presigned URL. Click
// tracking failures never block the download.
func (s *ShareService) ResolveDownload(ctx context.Context, fileID, email string) (string, error) {
	email = normalizeEmail(email)
	if fileID == "" || email == "" {
		return "", appErr.ErrInvalid
	}
	share, err := s.store.Get(ctx, fileID)
	if err != nil {
		return "", err
	}
	if share.Deleted {
		// Terminal state: the blob is gone or about to be.
		return "", appErr.ErrNotFound
	}
	if _, ok := share.ClickStatus[email]; !ok {
		return "", appErr.ErrUnauthorized
	}

	if err := s.store.MarkClicked(ctx, fileID, email); err != nil {
		logutil.GetLogger(ctx).Warn("click registration failed",
			zap.String("file_id", fileID), zap.String("email", email), zap.Error(err))
	}
	if s.cleaner != nil {
		s.cleaner.Schedule(fileID)
	}

	link, err := s.blobs.PresignedGetURL(ctx, fileID, share.FileName, s.opts.URLTTL)
	if err != nil {
		logutil.GetLogger(ctx).Error("presign failed", zap.String("file_id", fileID), zap.Error(err))
		return "", appErr.ErrInternal
	}
	return link, nil
}

func evaluateAndMarkDelete(ctx context.Context, store ShareStore, fileID string, exclusive bool) (bool, error) {
	share, err := store.Get(ctx, fileID)
	if err != nil {
		return false, err
	}
	if share.Deleted {
		return false, nil
	}
	if !fullyConsumed(share.ClickStatus, exclusive) {
		return false, nil
	}
	return store.MarkDeleted(ctx, fileID)
}

func fullyConsumed(clicks map[string]bool, exclusive bool) bool {
	if len(clicks) == 0 {
		return false
	}
	if exclusive {
		for _, clicked := range clicks {
			if clicked {
				return true
			}
		}
		return false
	}
	for _, clicked := range clicks {
		if !clicked {
			return false
		}
	}
	return true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeRecipients(recipients []string) []string {
	seen := make(map[string]struct{}, len(recipients))
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		email := normalizeEmail(r)
		if email == "" || !strings.Contains(email, "@") {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out
}
