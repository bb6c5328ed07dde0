package testutil

import (
	"context"
	"sync"

	"github.com/hspatel/fileshare/internal/model"
	appErr "github.com/hspatel/fileshare/internal/pkg/errors"
)

// MemShareStore is an in-memory ShareStore with the same atomicity
// guarantees as the postgres repo: every mutation happens under one lock,
// field-scoped, never by writing back a whole cached record.
type MemShareStore struct {
	mu     sync.Mutex
	shares map[string]*model.Share

	// Error hooks for failure-path tests.
	CreateErr error
	ClickErr  error
}

func NewMemShareStore() *MemShareStore {
	return &MemShareStore{shares: make(map[string]*model.Share)}
}

func (s *MemShareStore) Create(ctx context.Context, share *model.Share) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	if _, ok := s.shares[share.FileID]; ok {
		return appErr.ErrConflict
	}
	s.shares[share.FileID] = copyShare(share)
	return nil
}

func (s *MemShareStore) Get(ctx context.Context, fileID string) (*model.Share, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.shares[fileID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return copyShare(share), nil
}

func (s *MemShareStore) MarkClicked(ctx context.Context, fileID, email string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ClickErr != nil {
		return s.ClickErr
	}
	share, ok := s.shares[fileID]
	if !ok {
		return appErr.ErrNotFound
	}
	if _, ok := share.ClickStatus[email]; !ok {
		return appErr.ErrUnauthorized
	}
	share.ClickStatus[email] = true
	return nil
}

func (s *MemShareStore) MarkDeleted(ctx context.Context, fileID string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.shares[fileID]
	if !ok {
		return false, appErr.ErrNotFound
	}
	if share.Deleted {
		return false, nil
	}
	share.Deleted = true
	return true, nil
}

func (s *MemShareStore) ListReclaimable(ctx context.Context, deletedSince int64) ([]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0)
	for id, share := range s.shares {
		if share.Deleted {
			if share.UploadedAt >= deletedSince {
				ids = append(ids, id)
			}
			continue
		}
		if len(share.ClickStatus) == 0 {
			continue
		}
		all := true
		for _, clicked := range share.ClickStatus {
			if !clicked {
				all = false
				break
			}
		}
		if all {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func copyShare(share *model.Share) *model.Share {
	out := *share
	out.Recipients = append([]string(nil), share.Recipients...)
	out.ClickStatus = make(map[string]bool, len(share.ClickStatus))
	for k, v := range share.ClickStatus {
		out.ClickStatus[k] = v
	}
	return &out
}
