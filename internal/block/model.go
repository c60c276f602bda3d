package block

import "time"

const DefaultType = "paragraph"

// Block is the latest persisted state of one block. There is exactly one
// row per (workspace, document, block); edits overwrite it.
type Block struct {
	ID          uint64    `json:"-"`
	WorkspaceID string    `json:"workspaceId" gorm:"size:128;uniqueIndex:idx_block_scope,priority:1"`
	DocumentID  string    `json:"documentId" gorm:"size:128;uniqueIndex:idx_block_scope,priority:2"`
	BlockID     string    `json:"blockId" gorm:"size:128;uniqueIndex:idx_block_scope,priority:3"`
	Content     string    `json:"content"`
	Version     int64     `json:"version"`
	BlockType   string    `json:"blockType" gorm:"size:32;default:paragraph"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type BlocksMeta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

type PaginatedBlocks struct {
	Data []Block    `json:"data"`
	Meta BlocksMeta `json:"meta"`
}
