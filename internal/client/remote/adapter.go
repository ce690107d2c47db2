// Package remote is the client for the authoritative remote store.
//
// The wire contract is fixed by the store endpoint: a single URL taking an
// "action" verb as a query parameter, JSON bodies on writes, JSON responses,
// and an {"error": ...} envelope on failure. Every call carries a hard
// timeout; timeouts, transport failures and malformed responses all surface
// as common.ErrRemoteUnavailable so the reconciliation engine can fall back
// to the local cache with a single errors.Is check.
//
// Rows coming back from the store are loosely typed (ids and passwords may
// arrive as numbers, fields may be missing). The normalization layer in this
// package coerces every row into a canonical model.Member before it crosses
// into the core.
package remote

import (
	"context"

	"github.com/avetrano/matrixflow/internal/model"
)

// Adapter is the remote store contract used by the reconciliation engine.
// Calls are not idempotent (the store has no dedup key); callers must not
// blindly resubmit on failure.
type Adapter interface {
	// FetchAll returns the full normalized member set. An empty store
	// returns an empty list, not an error.
	FetchAll(ctx context.Context) ([]model.Member, error)

	// Register appends a new member row.
	Register(ctx context.Context, m model.Member) error

	// AddUtility appends a utility row owned by memberID, including any
	// inline attachment payload.
	AddUtility(ctx context.Context, memberID string, u model.Utility) error

	// UpdateMemberFields patches a member's profile fields.
	UpdateMemberFields(ctx context.Context, memberID string, patch model.MemberPatch) error

	// UpdateUtilityStatus moves a utility to a terminal review state.
	// Requires an administrator token on deployments that enforce one.
	UpdateUtilityStatus(ctx context.Context, memberID, utilityID string, status model.UtilityStatus) error

	// FetchAttachment lazy-loads the attachment payload that bulk listings
	// omit. Returns the base64 document body.
	FetchAttachment(ctx context.Context, utilityID string) (string, error)

	// AdminLogin exchanges administrator credentials for a signed token,
	// attached to subsequent status updates.
	AdminLogin(ctx context.Context, username, password string) (string, error)

	// SetAdminToken installs the token used for administrator actions.
	SetAdminToken(token string)
}
