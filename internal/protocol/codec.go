package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownEvent     = errors.New("unknown event type")
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Envelope is the frame written on the wire.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var decoders = map[EventType]func(json.RawMessage) (Event, error){
	JoinWorkspace:          decodeAs[JoinWorkspaceEvent],
	DocumentJoin:           decodeAs[DocumentJoinEvent],
	DocumentLeave:          decodeAs[DocumentLeaveEvent],
	ContentUpdate:          decodeAs[ContentUpdateEvent],
	BlockFocus:             decodeAs[BlockFocusEvent],
	CursorUpdate:           decodeAs[CursorUpdateEvent],
	RequestEdit:            decodeAs[RequestEditEvent],
	EditPermissionResponse: decodeAs[EditPermissionResponseEvent],
	GrantEdit:              decodeAs[GrantEditEvent],
	UserJoined:             decodeAs[UserJoinedEvent],
	UserLeft:               decodeAs[UserLeftEvent],
	DocumentState:          decodeAs[DocumentStateEvent],
	ContentUpdated:         decodeAs[ContentUpdatedEvent],
	BlockFocusChanged:      decodeAs[BlockFocusChangedEvent],
	CursorUpdated:          decodeAs[CursorUpdatedEvent],
	EditRequest:            decodeAs[EditRequestEvent],
	EditorGranted:          decodeAs[EditorGrantedEvent],
}

func decodeAs[T Event](raw json.RawMessage) (Event, error) {
	var ev T
	if len(raw) == 0 || string(raw) == "null" {
		return ev, nil
	}
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return ev, nil
}

// Encode wraps an event in its envelope.
func Encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventType(), err)
	}
	return json.Marshal(Envelope{Type: ev.EventType(), Payload: payload})
}

// MustEncode is Encode for events whose payloads always marshal.
func MustEncode(ev Event) []byte {
	data, err := Encode(ev)
	if err != nil {
		panic(err)
	}
	return data
}

// Decode parses a frame into its concrete event. The returned error wraps
// ErrMalformedFrame, ErrUnknownEvent or ErrMalformedPayload.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	decode, ok := decoders[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
	return decode(env.Payload)
}
