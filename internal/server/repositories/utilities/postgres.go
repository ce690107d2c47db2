// Package utilities provides the PostgreSQL-backed repository for utility
// contract rows and their attachments.
package utilities

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avetrano/matrixflow/internal/common"
	"github.com/avetrano/matrixflow/internal/dbx"
	"github.com/avetrano/matrixflow/internal/model"
)

// Attachment is the stored payload coordinates of one utility document:
// either inline base64 data or an object storage key, never both.
type Attachment struct {
	Name string
	Type string
	Data string
	Key  string
}

// Repository is the utility storage contract used by the store service.
type Repository interface {
	Insert(ctx context.Context, memberID string, u *model.Utility) error
	SelectAllLite(ctx context.Context) (map[string][]model.Utility, error)
	UpdateStatus(ctx context.Context, utilityID string, status model.UtilityStatus) error
	GetAttachment(ctx context.Context, utilityID string) (*Attachment, error)
}

// PostgresRepository implements utility storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert appends a utility row. AttachmentKey set means the payload lives in
// object storage and AttachmentData must be empty.
func (r *PostgresRepository) Insert(ctx context.Context, memberID string, u *model.Utility) error {
	query := `
		INSERT INTO utilities (id, member_id, type, provider, date_added, status,
			attachment_name, attachment_type, attachment_data, attachment_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`
	_, err := r.db.ExecContext(ctx, query,
		u.ID, memberID, string(u.Type), u.Provider, u.DateAdded, string(u.Status),
		u.AttachmentName, u.AttachmentType, u.AttachmentData, u.AttachmentKey)
	if err != nil {
		return fmt.Errorf("insert utility: %w", err)
	}
	return nil
}

// SelectAllLite returns every utility grouped by owner, with attachment
// payloads omitted and HasAttachment set instead. This is the shape of the
// bulk member listing.
func (r *PostgresRepository) SelectAllLite(ctx context.Context) (map[string][]model.Utility, error) {
	query := `
		SELECT id, member_id, type, provider, date_added, status, attachment_name, attachment_type,
			(attachment_data <> '' OR attachment_key <> '') AS has_attachment
		FROM utilities
		ORDER BY date_added;
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select utilities: %w", err)
	}
	defer rows.Close()

	result := map[string][]model.Utility{}
	for rows.Next() {
		var (
			u        model.Utility
			memberID string
			utype    string
			status   string
		)
		if err := rows.Scan(&u.ID, &memberID, &utype, &u.Provider, &u.DateAdded, &status,
			&u.AttachmentName, &u.AttachmentType, &u.HasAttachment); err != nil {
			return nil, err
		}
		u.Type = model.UtilityType(utype)
		u.Status = model.UtilityStatus(status)
		result[memberID] = append(result[memberID], u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatus moves a utility to a new review state.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, utilityID string, status model.UtilityStatus) error {
	query := `UPDATE utilities SET status = $2 WHERE id = $1;`
	res, err := r.db.ExecContext(ctx, query, utilityID, string(status))
	if err != nil {
		return fmt.Errorf("update utility status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// GetAttachment returns the stored attachment coordinates for one utility.
func (r *PostgresRepository) GetAttachment(ctx context.Context, utilityID string) (*Attachment, error) {
	query := `SELECT attachment_name, attachment_type, attachment_data, attachment_key FROM utilities WHERE id = $1;`
	var a Attachment
	err := r.db.QueryRowContext(ctx, query, utilityID).Scan(&a.Name, &a.Type, &a.Data, &a.Key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get attachment: %w", err)
	}
	return &a, nil
}
