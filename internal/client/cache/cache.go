// Package cache is the durable on-device copy of the member set and the
// current-session member, backed by SQLite.
//
// The cache is strictly subordinate to the remote store: it may be discarded
// and rebuilt at any time. Snapshot writes are whole-list replacements inside
// a single transaction, so the cache is never left partially written. A
// size-bounding transform strips oversized attachment payloads before every
// durable write; callers' in-memory copies are not touched.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avetrano/matrixflow/internal/client/cache/migrations"
	"github.com/avetrano/matrixflow/internal/common"
	"github.com/avetrano/matrixflow/internal/dbx"
	"github.com/avetrano/matrixflow/internal/model"
	"github.com/pressly/goose/v3"
)

// Store owns the SQLite handle for the local cache.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at dsn and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// SQLite allows one writer; a single pooled connection also keeps
	// :memory: databases stable across calls.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return &Store{db: db}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot replaces the whole cached member set with the given list.
// Oversized attachment payloads are stripped from the durable copy; the
// caller's slice is left intact.
func (s *Store) SaveSnapshot(ctx context.Context, members []model.Member) error {
	trimmed := TrimAttachments(members)

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM members`); err != nil {
			return fmt.Errorf("clear members: %w", err)
		}

		query := `INSERT INTO members
			(id, username, password, email, phone, sponsor_id, parent_id, joined_at, level, role, utilities, avatar)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

		for i := range trimmed {
			m := &trimmed[i]

			utilities, err := json.Marshal(m.Utilities)
			if err != nil {
				return fmt.Errorf("encode utilities: %w", err)
			}
			avatar, err := json.Marshal(m.AvatarConfig)
			if err != nil {
				return fmt.Errorf("encode avatar: %w", err)
			}

			_, err = tx.ExecContext(ctx, query,
				m.ID, m.Username, m.Password, m.Email, m.Phone,
				m.SponsorID, m.ParentID, m.JoinedAt.UTC().Format(time.RFC3339Nano),
				m.Level, string(m.Role), string(utilities), string(avatar))
			if err != nil {
				return fmt.Errorf("insert member %s: %w", m.ID, err)
			}
		}
		return nil
	})
}

// LoadSnapshot returns the cached member set in insertion order. An empty
// cache yields an empty list, not an error.
func (s *Store) LoadSnapshot(ctx context.Context) ([]model.Member, error) {
	query := `SELECT id, username, password, email, phone, sponsor_id, parent_id,
		joined_at, level, role, utilities, avatar
		FROM members ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	defer rows.Close()

	result := []model.Member{}
	for rows.Next() {
		var m model.Member
		var joinedAt, role, utilities, avatar string

		if err := rows.Scan(&m.ID, &m.Username, &m.Password, &m.Email, &m.Phone,
			&m.SponsorID, &m.ParentID, &joinedAt, &m.Level, &role, &utilities, &avatar); err != nil {
			return nil, err
		}

		m.Role = model.Role(role)
		if t, err := time.Parse(time.RFC3339Nano, joinedAt); err == nil {
			m.JoinedAt = t
		}
		if err := json.Unmarshal([]byte(utilities), &m.Utilities); err != nil {
			m.Utilities = []model.Utility{}
		}
		if err := json.Unmarshal([]byte(avatar), &m.AvatarConfig); err != nil {
			m.AvatarConfig = model.DefaultAvatar(m.Username)
		}

		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SaveSession stores the current-session member, replacing any previous one.
// The session copy goes through the same attachment trim as the snapshot.
func (s *Store) SaveSession(ctx context.Context, m *model.Member) error {
	trimmed := TrimAttachments([]model.Member{*m})

	body, err := json.Marshal(trimmed[0])
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	query := `INSERT INTO session (id, member) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET member = excluded.member`
	if _, err := s.db.ExecContext(ctx, query, string(body)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadSession restores the persisted session member, or ErrNotFound when no
// session is stored.
func (s *Store) LoadSession(ctx context.Context) (*model.Member, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT member FROM session WHERE id = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var m model.Member
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &m, nil
}

// ClearSession removes the persisted session member. Clearing an empty
// session is a no-op.
func (s *Store) ClearSession(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// TrimAttachments deep-copies the member list and clears every attachment
// payload larger than common.MaxCachedAttachmentBytes, marking the utility
// as still having an attachment remotely. The input is not modified.
func TrimAttachments(members []model.Member) []model.Member {
	out := model.CloneMembers(members)
	for i := range out {
		for j := range out[i].Utilities {
			u := &out[i].Utilities[j]
			if len(u.AttachmentData) > common.MaxCachedAttachmentBytes {
				u.AttachmentData = ""
				u.HasAttachment = true
			}
		}
	}
	return out
}
