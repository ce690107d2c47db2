// Package members provides the PostgreSQL-backed repository for member rows.
package members

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/avetrano/matrixflow/internal/common"
	"github.com/avetrano/matrixflow/internal/dbx"
	"github.com/avetrano/matrixflow/internal/model"
)

// Repository is the member storage contract used by the store service.
type Repository interface {
	Insert(ctx context.Context, m *model.Member) error
	SelectAll(ctx context.Context) ([]model.Member, error)
	GetByUsername(ctx context.Context, username string) (*model.Member, error)
	ExistsUsername(ctx context.Context, username string) (bool, error)
	UpdateFields(ctx context.Context, id string, patch model.MemberPatch) error
}

// PostgresRepository implements member storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// nullable maps the model's empty-string convention to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Insert appends a member row. Username uniqueness is enforced by the schema;
// callers pre-check to return a domain error instead of a constraint failure.
func (r *PostgresRepository) Insert(ctx context.Context, m *model.Member) error {
	avatar, err := json.Marshal(m.AvatarConfig)
	if err != nil {
		return fmt.Errorf("encode avatar: %w", err)
	}

	query := `
		INSERT INTO members (id, username, password, email, phone, sponsor_id, parent_id, joined_at, level, role, avatar)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err = r.db.ExecContext(ctx, query,
		m.ID, m.Username, m.Password, m.Email, m.Phone,
		nullable(m.SponsorID), nullable(m.ParentID),
		m.JoinedAt, m.Level, string(m.Role), avatar)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

const selectColumns = `id, username, password, email, phone, sponsor_id, parent_id, joined_at, level, role, avatar`

func scanMember(scan func(dest ...any) error) (model.Member, error) {
	var (
		m         model.Member
		sponsorID sql.NullString
		parentID  sql.NullString
		role      string
		avatar    []byte
	)
	if err := scan(&m.ID, &m.Username, &m.Password, &m.Email, &m.Phone,
		&sponsorID, &parentID, &m.JoinedAt, &m.Level, &role, &avatar); err != nil {
		return model.Member{}, err
	}
	m.SponsorID = sponsorID.String
	m.ParentID = parentID.String
	m.Role = model.Role(role)
	if len(avatar) > 0 {
		if err := json.Unmarshal(avatar, &m.AvatarConfig); err != nil {
			return model.Member{}, fmt.Errorf("decode avatar: %w", err)
		}
	}
	m.Utilities = []model.Utility{}
	return m, nil
}

// SelectAll returns every member in insertion order, without utilities.
func (r *PostgresRepository) SelectAll(ctx context.Context) ([]model.Member, error) {
	query := `SELECT ` + selectColumns + ` FROM members ORDER BY position;`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	defer rows.Close()

	result := []model.Member{}
	for rows.Next() {
		m, err := scanMember(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByUsername finds one member by case-insensitive username.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*model.Member, error) {
	query := `SELECT ` + selectColumns + ` FROM members WHERE lower(username) = lower($1);`
	m, err := scanMember(r.db.QueryRowContext(ctx, query, username).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &m, nil
}

// ExistsUsername reports whether a member with this username already exists,
// case-insensitively.
func (r *PostgresRepository) ExistsUsername(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM members WHERE lower(username) = lower($1));`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return exists, nil
}

// UpdateFields patches email, phone and avatar. Nil patch fields keep the
// stored value.
func (r *PostgresRepository) UpdateFields(ctx context.Context, id string, patch model.MemberPatch) error {
	var avatar any
	if patch.AvatarConfig != nil {
		encoded, err := json.Marshal(patch.AvatarConfig)
		if err != nil {
			return fmt.Errorf("encode avatar: %w", err)
		}
		avatar = encoded
	}

	var email, phone any
	if patch.Email != nil {
		email = *patch.Email
	}
	if patch.Phone != nil {
		phone = *patch.Phone
	}

	query := `
		UPDATE members SET
			email = COALESCE($2, email),
			phone = COALESCE($3, phone),
			avatar = COALESCE($4, avatar)
		WHERE id = $1;
	`
	res, err := r.db.ExecContext(ctx, query, id, email, phone, avatar)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
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
