package usecases

import (
	"context"
	"errors"
	"strings"

	"grocery-sync/entities"
	"grocery-sync/repositories"
	"grocery-sync/ws"
)

type GroceryUseCase struct {
	GroceryRepo repositories.GroceryRepository
	UserRepo    repositories.UserRepository
	Broadcaster Broadcaster

	// OwnerOnly scopes listing and mutations to the requester's own items.
	// When false every authenticated user shares one global list.
	OwnerOnly bool
}

func NewGroceryUseCase(groceryRepo repositories.GroceryRepository, userRepo repositories.UserRepository, b Broadcaster, ownerOnly bool) *GroceryUseCase {
	if b == nil {
		b = nopBroadcaster{}
	}
	return &GroceryUseCase{
		GroceryRepo: groceryRepo,
		UserRepo:    userRepo,
		Broadcaster: b,
		OwnerOnly:   ownerOnly,
	}
}

// Add creates a pending item owned by userID and broadcasts it.
func (uc *GroceryUseCase) Add(ctx context.Context, userID, name string) (*entities.GroceryItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validation("Please pass name of item.")
	}

	if _, err := uc.UserRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFound("No user found")
		}
		return nil, internal(err)
	}

	item := &entities.GroceryItem{
		Name:      name,
		UserID:    userID,
		Completed: entities.ItemPending,
	}
	if err := uc.GroceryRepo.Create(ctx, item); err != nil {
		return nil, internal(err)
	}

	uc.Broadcaster.BroadcastAll(ws.EventGroceryAdd, ItemEvent{List: *item})
	return item, nil
}

// Update changes the completion state and, when given, the name of an item.
// Concurrent updates are last write wins.
func (uc *GroceryUseCase) Update(ctx context.Context, userID, id string, completed *int, name *string) (*entities.GroceryItem, error) {
	if strings.TrimSpace(id) == "" {
		return nil, validation("Please pass item id.")
	}
	if completed == nil && name == nil {
		return nil, validation("Please pass the completed state.")
	}

	fields := map[string]interface{}{}
	if completed != nil {
		if *completed != entities.ItemPending && *completed != entities.ItemCompleted {
			return nil, validation("Completed state must be 0 or 1.")
		}
		fields["completed"] = *completed
	}
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return nil, validation("Please pass name of item.")
		}
		fields["name"] = n
	}

	if _, err := uc.authorize(ctx, userID, id); err != nil {
		return nil, err
	}

	item, err := uc.GroceryRepo.Update(ctx, id, fields)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFound("No item found")
		}
		return nil, internal(err)
	}

	uc.Broadcaster.BroadcastAll(ws.EventGroceryUpdate, ItemEvent{List: *item})
	return item, nil
}

// Delete removes an item and broadcasts the removed record.
func (uc *GroceryUseCase) Delete(ctx context.Context, userID, id string) (*entities.GroceryItem, error) {
	if strings.TrimSpace(id) == "" {
		return nil, validation("Please pass item id.")
	}

	item, err := uc.authorize(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := uc.GroceryRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFound("No item found")
		}
		return nil, internal(err)
	}

	uc.Broadcaster.BroadcastAll(ws.EventGroceryDelete, ItemDeletedEvent{
		Success: true,
		Msg:     "Successful deleted grocery item.",
		List:    *item,
	})
	return item, nil
}

// List returns the items visible to userID under the configured scope.
func (uc *GroceryUseCase) List(ctx context.Context, userID string) ([]entities.GroceryItem, error) {
	var (
		items []entities.GroceryItem
		err   error
	)
	if uc.OwnerOnly {
		items, err = uc.GroceryRepo.GetByUserID(ctx, userID)
	} else {
		items, err = uc.GroceryRepo.GetAll(ctx)
	}
	if err != nil {
		return nil, internal(err)
	}
	return items, nil
}

// authorize loads the item and checks the requester may change it.
func (uc *GroceryUseCase) authorize(ctx context.Context, userID, id string) (*entities.GroceryItem, error) {
	item, err := uc.GroceryRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFound("No item found")
		}
		return nil, internal(err)
	}
	if uc.OwnerOnly && item.UserID != userID {
		return nil, forbidden("You can only change your own items.")
	}
	return item, nil
}
