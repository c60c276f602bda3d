// Package protocol defines the events carried on the collaboration channel.
//
// Every frame is a JSON envelope {"type": ..., "payload": ...}. Decode maps
// the type tag to a concrete payload struct so callers can switch on the Go
// type instead of string-keyed callbacks.
package protocol

import (
	"time"

	"collaborative-workspace/internal/presence"
	"collaborative-workspace/internal/textop"
)

type EventType string

// client -> peer
const (
	JoinWorkspace          EventType = "join-workspace"
	DocumentJoin           EventType = "document-join"
	DocumentLeave          EventType = "document-leave"
	ContentUpdate          EventType = "content-update"
	BlockFocus             EventType = "block-focus"
	CursorUpdate           EventType = "cursor-update"
	RequestEdit            EventType = "request-edit"
	EditPermissionResponse EventType = "edit-permission-response"
	GrantEdit              EventType = "grant-edit"
)

// peer -> client
const (
	UserJoined        EventType = "user-joined"
	UserLeft          EventType = "user-left"
	DocumentState     EventType = "document-state"
	ContentUpdated    EventType = "content-updated"
	BlockFocusChanged EventType = "block-focus-changed"
	CursorUpdated     EventType = "cursor-updated"
	EditRequest       EventType = "edit-request"
	EditorGranted     EventType = "editor-granted"
)

// Event is implemented by every payload type.
type Event interface {
	EventType() EventType
}

type JoinWorkspaceEvent struct {
	WorkspaceID string `json:"workspaceId" validate:"required"`
	ProjectID   string `json:"projectId,omitempty"`
}

// DocumentJoinEvent carries the document ID in the blockId field.
type DocumentJoinEvent struct {
	BlockID     string `json:"blockId" validate:"required"`
	WorkspaceID string `json:"workspaceId" validate:"required"`
}

type DocumentLeaveEvent struct {
	BlockID     string `json:"blockId" validate:"required"`
	WorkspaceID string `json:"workspaceId" validate:"required"`
}

type ContentUpdateEvent struct {
	DocumentID  string             `json:"documentId" validate:"required"`
	BlockID     string             `json:"blockId" validate:"required"`
	Operations  []textop.Operation `json:"operations"`
	Version     int64              `json:"version" validate:"gte=0"`
	WorkspaceID string             `json:"workspaceId" validate:"required"`
}

type BlockFocusEvent struct {
	DocumentID  string             `json:"documentId"`
	BlockID     string             `json:"blockId" validate:"required"`
	WorkspaceID string             `json:"workspaceId" validate:"required"`
	FocusType   presence.FocusType `json:"focusType" validate:"required,oneof=focus blur"`
}

type CursorUpdateEvent struct {
	WorkspaceID string `json:"workspaceId" validate:"required"`
	BlockID     string `json:"blockId" validate:"required"`
	Position    int    `json:"position" validate:"gte=0"`
}

type RequestEditEvent struct {
	DocumentID  string `json:"documentId"`
	BlockID     string `json:"blockId" validate:"required"`
	WorkspaceID string `json:"workspaceId" validate:"required"`
	Message     string `json:"message"`
}

// EditPermissionResponseEvent travels both ways with the same shape.
type EditPermissionResponseEvent struct {
	RequestID   string `json:"requestId" validate:"required"`
	RequesterID string `json:"requesterId" validate:"required"`
	DocumentID  string `json:"documentId"`
	BlockID     string `json:"blockId" validate:"required"`
	Approved    bool   `json:"approved"`
	WorkspaceID string `json:"workspaceId" validate:"required"`
}

type GrantEditEvent struct {
	WorkspaceID string `json:"workspaceId" validate:"required"`
	DocumentID  string `json:"documentId"`
	BlockID     string `json:"blockId" validate:"required"`
	UserID      string `json:"userId" validate:"required"`
}

type UserJoinedEvent struct {
	UserID string        `json:"userId"`
	User   presence.User `json:"user"`
}

type UserLeftEvent struct {
	UserID string `json:"userId"`
}

// ActiveUser is a user listed in a document-state snapshot.
type ActiveUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color,omitempty"`
	Cursor *int   `json:"cursor"`
}

type BlockState struct {
	BlockID   string `json:"blockId"`
	Content   string `json:"content"`
	Version   int64  `json:"version"`
	BlockType string `json:"blockType,omitempty"`
}

// DocumentStateEvent is sent to a client joining a document. Content and
// Version describe the first block so single-block clients need nothing else.
type DocumentStateEvent struct {
	DocumentID  string       `json:"documentId"`
	Content     string       `json:"content"`
	Version     int64        `json:"version"`
	ActiveUsers []ActiveUser `json:"activeUsers"`
	Blocks      []BlockState `json:"blocks"`
}

type ContentUpdatedEvent struct {
	DocumentID string             `json:"documentId,omitempty"`
	BlockID    string             `json:"blockId"`
	Content    string             `json:"content"`
	Version    int64              `json:"version"`
	Operations []textop.Operation `json:"operations,omitempty"`
	UserID     string             `json:"userId,omitempty"`
}

type BlockFocusChangedEvent struct {
	BlockID   string             `json:"blockId"`
	UserID    string             `json:"userId"`
	User      presence.User      `json:"user"`
	FocusType presence.FocusType `json:"focusType"`
}

type CursorUpdatedEvent struct {
	BlockID  string `json:"blockId"`
	UserID   string `json:"userId"`
	Position int    `json:"position"`
}

type EditRequestEvent struct {
	RequestID  string        `json:"requestId"`
	Requester  presence.User `json:"requester"`
	DocumentID string        `json:"documentId"`
	BlockID    string        `json:"blockId"`
	Message    string        `json:"message"`
	Timestamp  time.Time     `json:"timestamp"`
}

type EditorGrantedEvent struct {
	BlockID string `json:"blockId"`
}

func (JoinWorkspaceEvent) EventType() EventType          { return JoinWorkspace }
func (DocumentJoinEvent) EventType() EventType           { return DocumentJoin }
func (DocumentLeaveEvent) EventType() EventType          { return DocumentLeave }
func (ContentUpdateEvent) EventType() EventType          { return ContentUpdate }
func (BlockFocusEvent) EventType() EventType             { return BlockFocus }
func (CursorUpdateEvent) EventType() EventType           { return CursorUpdate }
func (RequestEditEvent) EventType() EventType            { return RequestEdit }
func (EditPermissionResponseEvent) EventType() EventType { return EditPermissionResponse }
func (GrantEditEvent) EventType() EventType              { return GrantEdit }
func (UserJoinedEvent) EventType() EventType             { return UserJoined }
func (UserLeftEvent) EventType() EventType               { return UserLeft }
func (DocumentStateEvent) EventType() EventType          { return DocumentState }
func (ContentUpdatedEvent) EventType() EventType         { return ContentUpdated }
func (BlockFocusChangedEvent) EventType() EventType      { return BlockFocusChanged }
func (CursorUpdatedEvent) EventType() EventType          { return CursorUpdated }
func (EditRequestEvent) EventType() EventType            { return EditRequest }
func (EditorGrantedEvent) EventType() EventType          { return EditorGranted }
