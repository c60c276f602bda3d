package protocol

import "encoding/json"

// Relayed is a frame forwarded between relay nodes. TargetUserID narrows
// delivery to one user's connections.
type Relayed struct {
	Node         string          `json:"node"`
	WorkspaceID  string          `json:"workspaceId"`
	TargetUserID string          `json:"targetUserId,omitempty"`
	Frame        json.RawMessage `json:"frame"`
}
