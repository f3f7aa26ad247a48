package ws

import "encoding/json"

// Outbound events emitted by the HTTP layer after a successful mutation.
const (
	EventLocationUpdate = "locationupdate"
	EventGroceryAdd     = "groceryadd"
	EventGroceryUpdate  = "groceryupdate"
	EventGroceryDelete  = "grocerydelete"
)

// Inbound peer events and the names they are relayed under.
const (
	EventRequestStartLocation = "requeststartlocation"
	EventRequestStopLocation  = "requeststoplocation"
	EventSendLocation         = "sendlocation"

	EventStartLocationUpdate = "startlocationupdate"
	EventStopLocationUpdate  = "stoplocationupdate"
)

// RelayName maps an inbound peer event to the event name other peers receive.
var RelayName = map[string]string{
	EventRequestStartLocation: EventStartLocationUpdate,
	EventRequestStopLocation:  EventStopLocationUpdate,
	EventSendLocation:         EventLocationUpdate,
}

// Envelope is the JSON frame exchanged over the socket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds a text frame for event carrying payload.
func Encode(event string, payload interface{}) ([]byte, error) {
	var data json.RawMessage
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		data = p
	case []byte:
		data = json.RawMessage(p)
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
