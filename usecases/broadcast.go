package usecases

import (
	"grocery-sync/entities"
)

// Broadcaster delivers an event to every live realtime connection.
type Broadcaster interface {
	BroadcastAll(event string, payload interface{})
}

// LocationUpdate is the payload of a locationupdate event.
type LocationUpdate struct {
	UserID    string  `json:"userid"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ItemEvent is the payload of groceryadd and groceryupdate events.
type ItemEvent struct {
	List entities.GroceryItem `json:"list"`
}

// ItemDeletedEvent is the payload of a grocerydelete event.
type ItemDeletedEvent struct {
	Success bool                 `json:"success"`
	Msg     string               `json:"msg"`
	List    entities.GroceryItem `json:"list"`
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastAll(string, interface{}) {}
