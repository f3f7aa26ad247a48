package repositories

import (
	"context"
	"errors"
	"fmt"

	"grocery-sync/db"
	"grocery-sync/entities"

	"gorm.io/gorm"
)

type userPgRepository struct {
	db db.Database
}

func NewUserPgRepository(database db.Database) UserRepository {
	return &userPgRepository{db: database}
}

func (r *userPgRepository) Create(ctx context.Context, user *entities.User) error {
	err := r.db.GetDB().WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *userPgRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	var user entities.User
	err := r.db.GetDB().WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userPgRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	var user entities.User
	err := r.db.GetDB().WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userPgRepository) GetAll(ctx context.Context) ([]entities.User, error) {
	users := []entities.User{}
	err := r.db.GetDB().WithContext(ctx).Order("created_at ASC").Find(&users).Error
	return users, err
}

func (r *userPgRepository) GetAllExcept(ctx context.Context, id string) ([]entities.User, error) {
	users := []entities.User{}
	err := r.db.GetDB().WithContext(ctx).Where("id <> ?", id).Order("created_at ASC").Find(&users).Error
	return users, err
}

func (r *userPgRepository) UpdateLocation(ctx context.Context, id string, loc Location) (*entities.User, error) {
	res := r.db.GetDB().WithContext(ctx).Model(&entities.User{}).Where("id = ?", id).Updates(locationColumns(loc))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// UpdateLocations stores a batch of locations in one transaction and returns
// how many users were updated. Unknown ids are skipped.
func (r *userPgRepository) UpdateLocations(ctx context.Context, locs map[string]Location) (int, error) {
	if len(locs) == 0 {
		return 0, nil
	}
	updated := 0
	err := r.db.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, loc := range locs {
			res := tx.Model(&entities.User{}).Where("id = ?", id).Updates(locationColumns(loc))
			if res.Error != nil {
				return fmt.Errorf("update location of %s: %w", id, res.Error)
			}
			updated += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func locationColumns(loc Location) map[string]interface{} {
	return map[string]interface{}{
		"latitude":   loc.Latitude,
		"longitude":  loc.Longitude,
		"updated_at": entities.Now(),
	}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
