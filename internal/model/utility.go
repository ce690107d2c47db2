package model

import "time"

// UtilityType is the supply category of a contract. The wire values are kept
// from the legacy spreadsheet rows ("Luce" = power, "Gas" = gas) so old
// deployments keep deserializing.
type UtilityType string

const (
	UtilityTypePower UtilityType = "Luce"
	UtilityTypeGas   UtilityType = "Gas"
)

// UtilityStatus is the review state of a utility contract. A utility is
// created Pending and moves to Active or Rejected exactly once; both are
// terminal.
type UtilityStatus string

const (
	UtilityStatusPending  UtilityStatus = "Pending"
	UtilityStatusActive   UtilityStatus = "Active"
	UtilityStatusRejected UtilityStatus = "Rejected"
)

// Utility is one contract in a member's personal portfolio.
//
// AttachmentData holds the base64 document payload when present inline.
// Bulk listings omit it and set HasAttachment instead; the payload is then
// lazy-loaded per utility. AttachmentKey is set by the remote store when the
// payload was offloaded to object storage; clients never read it.
type Utility struct {
	ID             string        `json:"id"`
	Type           UtilityType   `json:"type"`
	Provider       string        `json:"provider"`
	DateAdded      time.Time     `json:"dateAdded"`
	Status         UtilityStatus `json:"status"`
	AttachmentName string        `json:"attachmentName,omitempty"`
	AttachmentType string        `json:"attachmentType,omitempty"`
	AttachmentData string        `json:"attachmentData,omitempty"`
	AttachmentKey  string        `json:"attachmentKey,omitempty"`
	HasAttachment  bool          `json:"hasAttachment,omitempty"`
}

// CanTransitionTo reports whether the status change is allowed by the
// lifecycle: only Pending may move, and only to Active or Rejected.
func (u *Utility) CanTransitionTo(next UtilityStatus) bool {
	if u.Status != UtilityStatusPending {
		return false
	}
	return next == UtilityStatusActive || next == UtilityStatusRejected
}
