// Package model defines the MatrixFlow domain entities shared by the client
// and the reference remote store server: members, their utility portfolios,
// avatar display settings, and the derived matrix tree view.
package model

import (
	"strings"
	"time"

	"github.com/avetrano/matrixflow/internal/common"
)

// Role is an explicit member role. Historically the administrator was
// recognized by a reserved username; the role field replaces that check.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Member is one participant in the placement matrix.
//
// SponsorID references the member who invited this one; ParentID references
// the member whose matrix slot this one occupies. The two differ when the
// sponsor's slots were already full at registration time. Empty SponsorID or
// ParentID means "none" (only the root has an empty ParentID).
type Member struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	Password     string       `json:"password,omitempty"`
	Email        string       `json:"email"`
	Phone        string       `json:"phone"`
	SponsorID    string       `json:"sponsorId,omitempty"`
	ParentID     string       `json:"parentId,omitempty"`
	JoinedAt     time.Time    `json:"joinedAt"`
	Level        int          `json:"level"`
	Role         Role         `json:"role,omitempty"`
	Utilities    []Utility    `json:"utilities"`
	AvatarConfig AvatarConfig `json:"avatarConfig"`
}

// IsRoot reports whether the member occupies the synthetic root slot.
func (m *Member) IsRoot() bool {
	return m.ParentID == ""
}

// UsernameEquals compares usernames case-insensitively.
func (m *Member) UsernameEquals(username string) bool {
	return strings.EqualFold(m.Username, username)
}

// Clone returns a deep copy of the member, including its utility list.
// Optimistic updates and cache trimming work on clones so callers never
// observe half-applied state.
func (m *Member) Clone() Member {
	c := *m
	if m.Utilities != nil {
		c.Utilities = make([]Utility, len(m.Utilities))
		copy(c.Utilities, m.Utilities)
	}
	return c
}

// CloneMembers deep-copies a member list.
func CloneMembers(members []Member) []Member {
	out := make([]Member, 0, len(members))
	for i := range members {
		out = append(out, members[i].Clone())
	}
	return out
}

// NewRootMember builds the canonical seed member used when neither the remote
// store nor the local cache has ever been written to.
func NewRootMember(now time.Time) Member {
	return Member{
		ID:           common.RootMemberID,
		Username:     common.RootUsername,
		Password:     common.RootPassword,
		Email:        common.RootEmail,
		Phone:        common.RootPhone,
		JoinedAt:     now,
		Level:        0,
		Role:         RoleAdmin,
		Utilities:    []Utility{},
		AvatarConfig: DefaultAvatar(common.RootUsername),
	}
}

// MemberPatch carries the profile fields a member may change after
// registration. Nil fields are left untouched.
type MemberPatch struct {
	Email        *string       `json:"email,omitempty"`
	Phone        *string       `json:"phone,omitempty"`
	AvatarConfig *AvatarConfig `json:"avatarConfig,omitempty"`
}

// Apply overlays the patch onto a member.
func (p MemberPatch) Apply(m *Member) {
	if p.Email != nil {
		m.Email = *p.Email
	}
	if p.Phone != nil {
		m.Phone = *p.Phone
	}
	if p.AvatarConfig != nil {
		m.AvatarConfig = *p.AvatarConfig
	}
}

// AvatarConfig holds display settings for a member's generated avatar.
// It is carried through storage untouched and has no behavioral meaning.
type AvatarConfig struct {
	Style           string `json:"style"`
	Seed            string `json:"seed"`
	BackgroundColor string `json:"backgroundColor"`
}

// DefaultAvatar returns the avatar settings assigned at registration.
func DefaultAvatar(seed string) AvatarConfig {
	return AvatarConfig{
		Style:           common.DefaultAvatarStyle,
		Seed:            seed,
		BackgroundColor: "transparent",
	}
}
