package entities

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ItemPending   = 0
	ItemCompleted = 1
)

// GroceryItem is one entry of a grocery list. UserID references the owner.
type GroceryItem struct {
	ID        string `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name      string `gorm:"not null" json:"name"`
	UserID    string `gorm:"type:varchar(36);index;not null" json:"userid"`
	Completed int    `gorm:"not null;default:0" json:"completed"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (g *GroceryItem) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	g.CreatedAt = Now()
	g.UpdatedAt = g.CreatedAt
	return nil
}
