package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/hspatel/fileshare/internal/model"
	"github.com/hspatel/fileshare/internal/pkg/dbutil"
	appErr "github.com/hspatel/fileshare/internal/pkg/errors"
)

// ShareRepo is the system-of-record for shares: one postgres row per
// share, keyed by file_id, with recipient and click state held as jsonb
// so both mutations stay field-scoped server-side updates.
type ShareRepo struct {
	db *sql.DB
}

func NewShareRepo(db *sql.DB) *ShareRepo {
	return &ShareRepo{db: db}
}

func (r *ShareRepo) Create(ctx context.Context, share *model.Share) error {
	recipients, err := json.Marshal(share.Recipients)
	if err != nil {
		return err
	}
	clicks, err := json.Marshal(share.ClickStatus)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"file_id":      share.FileID,
		"file_name":    share.FileName,
		"recipients":   string(recipients),
		"click_status": string(clicks),
		"uploaded_at":  share.UploadedAt,
		"deleted":      share.Deleted,
	}
	sqlStr, args, err := builder.BuildInsert("shares", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *ShareRepo) Get(ctx context.Context, fileID string) (*model.Share, error) {
	where := map[string]interface{}{"file_id": fileID}
	sqlStr, args, err := builder.BuildSelect("shares", where,
		[]string{"file_id", "file_name", "recipients", "click_status", "uploaded_at", "deleted"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanShare(rows)
}

// MarkClicked flips click_status[email] to true in a single server-side
// jsonb_set, so two recipients clicking at the same moment both land.
// jsonb_exists is used instead of the jsonb ? operator: the query string
// still goes through placeholder rebinding.
func (r *ShareRepo) MarkClicked(ctx context.Context, fileID, email string) error {
	sqlStr := `
		UPDATE shares
		SET click_status = jsonb_set(click_status, ARRAY[?], 'true'::jsonb)
		WHERE file_id = ? AND jsonb_exists(click_status, ?)
	`
	args := []interface{}{email, fileID, email}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// No row or email is not a click_status key; re-read to tell apart.
		if _, err := r.Get(ctx, fileID); err != nil {
			return err
		}
		return appErr.ErrUnauthorized
	}
	return nil
}

// MarkDeleted performs the false -> true transition exactly once and
// reports whether this call was the one that transitioned.
func (r *ShareRepo) MarkDeleted(ctx context.Context, fileID string) (bool, error) {
	sqlStr := `UPDATE shares SET deleted = TRUE WHERE file_id = ? AND deleted = FALSE`
	args := []interface{}{fileID}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ListReclaimable returns shares the periodic sweep should re-check:
// fully clicked ones whose deletion never fired, plus tombstones newer
// than the cutoff whose blob delete may have failed.
func (r *ShareRepo) ListReclaimable(ctx context.Context, deletedSince int64) ([]string, error) {
	sqlStr := `
		SELECT file_id FROM shares
		WHERE (deleted = TRUE AND uploaded_at >= ?)
		   OR (deleted = FALSE AND click_status <> '{}'::jsonb AND NOT EXISTS (
		        SELECT 1 FROM jsonb_each(click_status) AS kv WHERE kv.value = 'false'::jsonb))
	`
	args := []interface{}{deletedSince}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanShare(rows *sql.Rows) (*model.Share, error) {
	var share model.Share
	var recipients, clicks []byte
	if err := rows.Scan(&share.FileID, &share.FileName, &recipients, &clicks, &share.UploadedAt, &share.Deleted); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(recipients, &share.Recipients); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(clicks, &share.ClickStatus); err != nil {
		return nil, err
	}
	return &share, nil
}
