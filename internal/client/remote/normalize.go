package remote

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/avetrano/matrixflow/internal/model"
)

// flexString decodes a JSON value that should be a string but may arrive as
// a number, bool or null (spreadsheet-backed stores are not picky about
// column types).
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case nil:
		*f = ""
	case string:
		*f = flexString(value)
	case float64:
		*f = flexString(strconv.FormatFloat(value, 'f', -1, 64))
	case bool:
		*f = flexString(strconv.FormatBool(value))
	default:
		*f = ""
	}
	return nil
}

// flexInt decodes an integer that may arrive as a number, numeric string or
// null. Negative values clamp to zero.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n := 0
	switch value := v.(type) {
	case float64:
		n = int(value)
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			n = parsed
		}
	}
	if n < 0 {
		n = 0
	}
	*f = flexInt(n)
	return nil
}

// flexBool decodes a boolean that may arrive as a bool, a "TRUE"/"1" string
// or a number.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case bool:
		*f = flexBool(value)
	case string:
		s := strings.ToLower(strings.TrimSpace(value))
		*f = flexBool(s == "true" || s == "1" || s == "yes")
	case float64:
		*f = flexBool(value != 0)
	default:
		*f = false
	}
	return nil
}

// memberRow is the loose wire shape of one member record.
type memberRow struct {
	ID           flexString      `json:"id"`
	Username     flexString      `json:"username"`
	Password     flexString      `json:"password"`
	Email        flexString      `json:"email"`
	Phone        flexString      `json:"phone"`
	SponsorID    flexString      `json:"sponsorId"`
	ParentID     flexString      `json:"parentId"`
	JoinedAt     flexString      `json:"joinedAt"`
	Level        flexInt         `json:"level"`
	Role         flexString      `json:"role"`
	Utilities    []utilityRow    `json:"utilities"`
	AvatarConfig json.RawMessage `json:"avatarConfig"`
}

// utilityRow is the loose wire shape of one utility record.
type utilityRow struct {
	ID             flexString `json:"id"`
	OwnerID        flexString `json:"userId"`
	Type           flexString `json:"type"`
	Provider       flexString `json:"provider"`
	Status         flexString `json:"status"`
	DateAdded      flexString `json:"dateAdded"`
	AttachmentName flexString `json:"attachmentName"`
	AttachmentType flexString `json:"attachmentType"`
	AttachmentData flexString `json:"attachmentData"`
	HasAttachment  flexBool   `json:"hasAttachment"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// normalizeStatus maps both canonical and legacy Italian spellings onto the
// UtilityStatus enum; anything unrecognized counts as still pending.
func normalizeStatus(s string) model.UtilityStatus {
	switch strings.TrimSpace(s) {
	case string(model.UtilityStatusActive), "Attiva":
		return model.UtilityStatusActive
	case string(model.UtilityStatusRejected), "Rifiutata":
		return model.UtilityStatusRejected
	default:
		return model.UtilityStatusPending
	}
}

func normalizeType(s string) model.UtilityType {
	if strings.EqualFold(strings.TrimSpace(s), string(model.UtilityTypeGas)) {
		return model.UtilityTypeGas
	}
	return model.UtilityTypePower
}

func (r *memberRow) normalize() model.Member {
	m := model.Member{
		ID:        string(r.ID),
		Username:  string(r.Username),
		Password:  string(r.Password),
		Email:     string(r.Email),
		Phone:     string(r.Phone),
		SponsorID: string(r.SponsorID),
		ParentID:  string(r.ParentID),
		JoinedAt:  parseTime(string(r.JoinedAt)),
		Level:     int(r.Level),
		Utilities: []model.Utility{},
	}

	switch string(r.Role) {
	case string(model.RoleAdmin):
		m.Role = model.RoleAdmin
	case string(model.RoleMember):
		m.Role = model.RoleMember
	default:
		// Rows written before the role column existed: the root slot is
		// the administrator.
		if m.ParentID == "" {
			m.Role = model.RoleAdmin
		} else {
			m.Role = model.RoleMember
		}
	}

	for i := range r.Utilities {
		m.Utilities = append(m.Utilities, r.Utilities[i].normalize())
	}

	m.AvatarConfig = model.DefaultAvatar(m.Username)
	if len(r.AvatarConfig) > 0 {
		var avatar model.AvatarConfig
		if err := json.Unmarshal(r.AvatarConfig, &avatar); err == nil && avatar.Style != "" {
			m.AvatarConfig = avatar
		}
	}

	return m
}

func (r *utilityRow) normalize() model.Utility {
	return model.Utility{
		ID:             string(r.ID),
		Type:           normalizeType(string(r.Type)),
		Provider:       string(r.Provider),
		DateAdded:      parseTime(string(r.DateAdded)),
		Status:         normalizeStatus(string(r.Status)),
		AttachmentName: string(r.AttachmentName),
		AttachmentType: string(r.AttachmentType),
		AttachmentData: string(r.AttachmentData),
		HasAttachment:  bool(r.HasAttachment),
	}
}

// normalizeMembers coerces a raw response body holding an array of loose
// member rows into canonical members.
func normalizeMembers(body []byte) ([]model.Member, error) {
	var rows []memberRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}
	members := make([]model.Member, 0, len(rows))
	for i := range rows {
		members = append(members, rows[i].normalize())
	}
	return members, nil
}
