package usermeta

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultDescription is stored when a record is provisioned without one.
const DefaultDescription = "No description provided"

const maxIdentifierLength = 190

// Role enumerates the access roles cached locally for each identity.
type Role string

const (
	// RoleUser is the baseline role assigned on provisioning.
	RoleUser Role = "User"
	// RoleAdmin grants access to the administrative listing and role updates.
	RoleAdmin Role = "Admin"
)

var (
	// ErrInvalidRole indicates a role value outside the known enumeration.
	ErrInvalidRole = errors.New("usermeta: invalid role")
	// ErrInvalidUUID indicates an identity key that is empty or exceeds storage bounds.
	ErrInvalidUUID = errors.New("usermeta: invalid uuid")
)

// ParseRole validates raw input against the role enumeration.
func ParseRole(rawInput string) (Role, error) {
	switch strings.TrimSpace(rawInput) {
	case string(RoleUser):
		return RoleUser, nil
	case string(RoleAdmin):
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, rawInput)
	}
}

// String returns the underlying role name.
func (r Role) String() string {
	return string(r)
}

// normalizeUUID validates the external identity key.
func normalizeUUID(rawInput string) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUUID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUUID, maxIdentifierLength)
	}
	return trimmed, nil
}

// Record is the locally cached metadata for one external identity.
type Record struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UUID        string    `gorm:"column:uuid;size:190;not null;uniqueIndex:idx_user_metadata_uuid"`
	Role        Role      `gorm:"column:role;size:32;not null"`
	FirstName   string    `gorm:"column:first_name;size:320"`
	LastName    string    `gorm:"column:last_name;size:320"`
	Email       string    `gorm:"column:email;size:320"`
	AvatarURL   string    `gorm:"column:avatar_url;size:512"`
	Description string    `gorm:"column:description;size:1024;not null"`
	LastUpdated time.Time `gorm:"column:last_updated;not null"`
	Version     int64     `gorm:"column:version;not null;default:1"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime;index:idx_user_metadata_created"`
}

// TableName exposes the table backing identity records.
func (Record) TableName() string {
	return "user_metadata"
}

// ProfileHints carries optional profile fields available at first contact.
type ProfileHints struct {
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
}

// CreateInput describes an explicit administrative create.
type CreateInput struct {
	UUID        string
	FirstName   string
	LastName    string
	Email       string
	AvatarURL   string
	Description string
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	FirstName   *string
	LastName    *string
	Email       *string
	AvatarURL   *string
	Description *string
}
