package block

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BlockRepository interface {
	Upsert(ctx context.Context, b *Block) error
	FindOne(ctx context.Context, workspaceID, documentID, blockID string) (*Block, error)
	ListByDocument(ctx context.Context, workspaceID, documentID string, page, pageSize int) ([]Block, BlocksMeta, error)
	AllByDocument(ctx context.Context, workspaceID, documentID string) ([]Block, error)
}

type BlockRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new block repository
func NewRepository(db *gorm.DB) BlockRepository {
	return &BlockRepositoryImpl{db: db}
}

// Upsert writes the block unless a newer version is already stored, so
// saves that land out of order never roll content back.
func (r *BlockRepositoryImpl) Upsert(ctx context.Context, b *Block) error {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	if b.BlockType == "" {
		b.BlockType = DefaultType
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "workspace_id"}, {Name: "document_id"}, {Name: "block_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "version", "block_type", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "blocks.version <= excluded.version"},
		}},
	}).Create(b).Error
}

func (r *BlockRepositoryImpl) FindOne(ctx context.Context, workspaceID, documentID, blockID string) (*Block, error) {
	var b Block
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND document_id = ? AND block_id = ?", workspaceID, documentID, blockID).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BlockRepositoryImpl) ListByDocument(ctx context.Context, workspaceID, documentID string, page, pageSize int) ([]Block, BlocksMeta, error) {
	var blocks []Block
	var totalRecords int64

	scope := r.db.WithContext(ctx).Model(&Block{}).
		Where("workspace_id = ? AND document_id = ?", workspaceID, documentID)

	// Count total records
	if err := scope.Count(&totalRecords).Error; err != nil {
		return blocks, BlocksMeta{}, err
	}

	offset := (page - 1) * pageSize
	err := scope.Order("block_id ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&blocks).Error

	totalPages := int((totalRecords + int64(pageSize) - 1) / int64(pageSize))

	return blocks, BlocksMeta{
		Total:       totalRecords,
		PerPage:     pageSize,
		TotalPage:   totalPages,
		CurrentPage: page,
	}, err
}

func (r *BlockRepositoryImpl) AllByDocument(ctx context.Context, workspaceID, documentID string) ([]Block, error) {
	var blocks []Block
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND document_id = ?", workspaceID, documentID).
		Order("block_id ASC").
		Find(&blocks).Error
	return blocks, err
}
