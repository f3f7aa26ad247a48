package repositories

import (
	"context"
	"errors"

	"grocery-sync/entities"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Location is a latitude/longitude pair reported for a user.
type Location struct {
	Latitude  float64
	Longitude float64
}

type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id string) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	GetAll(ctx context.Context) ([]entities.User, error)
	GetAllExcept(ctx context.Context, id string) ([]entities.User, error)
	UpdateLocation(ctx context.Context, id string, loc Location) (*entities.User, error)
	UpdateLocations(ctx context.Context, locs map[string]Location) (int, error)
}

type GroceryRepository interface {
	Create(ctx context.Context, item *entities.GroceryItem) error
	GetByID(ctx context.Context, id string) (*entities.GroceryItem, error)
	GetAll(ctx context.Context) ([]entities.GroceryItem, error)
	GetByUserID(ctx context.Context, userID string) ([]entities.GroceryItem, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) (*entities.GroceryItem, error)
	Delete(ctx context.Context, id string) error
}
