package models

import "time"

// Custom profile field types.
const (
	FieldTypeText = "text"
	FieldTypeDate = "date"
)

// CustomProfileField is a realm-scoped profile field definition. Directory
// attribute maps reference fields by name under the
// "custom_profile_field__<name>" namespace.
type CustomProfileField struct {
	ID        uint   `gorm:"primaryKey"`
	RealmID   uint   `gorm:"uniqueIndex:idx_realm_field;not null"`
	Name      string `gorm:"uniqueIndex:idx_realm_field;not null"`
	FieldType string `gorm:"not null;default:'text'"`
	CreatedAt time.Time
}

// CustomProfileValue is one user's value for a field definition.
type CustomProfileValue struct {
	ID      uint   `gorm:"primaryKey"`
	UserID  string `gorm:"uniqueIndex:idx_user_field;not null"`
	FieldID uint   `gorm:"uniqueIndex:idx_user_field;not null"`
	Value   string

	UpdatedAt time.Time
}
