// Package common contains shared constants and sentinel errors used across
// MatrixFlow client and server components.
package common

import "time"

const (
	// MatrixWidth is the maximum number of direct placements under one member.
	MatrixWidth = 10

	// MaxDepth is the deepest level a new placement may occupy. Registration
	// is rejected when the computed parent already sits at this level.
	MaxDepth = 10

	// GraceWindow is how long a locally written member that is still missing
	// from a remote fetch is preserved during reconciliation. Beyond it the
	// record is presumed stale and dropped.
	GraceWindow = 15 * time.Minute

	// MaxCachedAttachmentBytes bounds attachment payloads written into the
	// durable local cache. Larger payloads are stripped before the write;
	// in-memory copies keep the full data.
	MaxCachedAttachmentBytes = 48 * 1024

	// MaxInlineAttachmentBytes bounds attachment payloads stored inline in
	// the remote store. Larger payloads are offloaded to object storage.
	MaxInlineAttachmentBytes = 64 * 1024

	// OversizedAttachmentMarker replaces the attachment name when a payload
	// too large for the local cache is accepted with no remote connectivity.
	OversizedAttachmentMarker = "(too large, not stored)"
)

// Seed values for the canonical root member, used when the remote store has
// never been written to.
const (
	RootMemberID       = "root-001"
	RootUsername       = "admin"
	RootPassword       = "password"
	RootEmail          = "admin@matrixflow.com"
	RootPhone          = "+390000000000"
	DefaultAvatarStyle = "bottts-neutral"
)

// AdminTokenHeaderName is the HTTP header carrying the administrator token on
// status-change requests.
const AdminTokenHeaderName = "Authorization"

// ReferralBaseURL is the public signup page referral links point at.
const ReferralBaseURL = "https://matrixflow.app/join"
