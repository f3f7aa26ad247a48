package repositories

import (
	"context"

	"grocery-sync/db"
	"grocery-sync/entities"
)

type groceryPgRepository struct {
	db db.Database
}

func NewGroceryPgRepository(database db.Database) GroceryRepository {
	return &groceryPgRepository{db: database}
}

func (r *groceryPgRepository) Create(ctx context.Context, item *entities.GroceryItem) error {
	return r.db.GetDB().WithContext(ctx).Create(item).Error
}

func (r *groceryPgRepository) GetByID(ctx context.Context, id string) (*entities.GroceryItem, error) {
	var item entities.GroceryItem
	err := r.db.GetDB().WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (r *groceryPgRepository) GetAll(ctx context.Context) ([]entities.GroceryItem, error) {
	items := []entities.GroceryItem{}
	err := r.db.GetDB().WithContext(ctx).Order("created_at ASC").Find(&items).Error
	return items, err
}

func (r *groceryPgRepository) GetByUserID(ctx context.Context, userID string) ([]entities.GroceryItem, error) {
	items := []entities.GroceryItem{}
	err := r.db.GetDB().WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&items).Error
	return items, err
}

// Update applies fields to the item with a single UPDATE statement. An item
// deleted in the meantime is reported as ErrNotFound rather than recreated.
func (r *groceryPgRepository) Update(ctx context.Context, id string, fields map[string]interface{}) (*entities.GroceryItem, error) {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["updated_at"] = entities.Now()

	res := r.db.GetDB().WithContext(ctx).Model(&entities.GroceryItem{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *groceryPgRepository) Delete(ctx context.Context, id string) error {
	res := r.db.GetDB().WithContext(ctx).Where("id = ?", id).Delete(&entities.GroceryItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
