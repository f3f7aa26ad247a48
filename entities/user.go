package entities

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultUserType = "user"

// User is an account of the grocery-sync backend. Latitude and Longitude hold
// the last known location and stay nil until the first update.
type User struct {
	ID           string   `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email        string   `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string   `gorm:"not null" json:"-"`
	Type         string   `gorm:"type:varchar(32);not null;default:'user'" json:"type"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Type == "" {
		u.Type = DefaultUserType
	}
	u.CreatedAt = Now()
	u.UpdatedAt = u.CreatedAt
	return nil
}
