package block

import (
	"context"
	defError "errors"

	"collaborative-workspace/internal/errors"

	"gorm.io/gorm"
)

type Service interface {
	GetBlock(ctx context.Context, workspaceID, documentID, blockID string) (*Block, error)
	ListBlocks(ctx context.Context, workspaceID, documentID string, page, pageSize int) (*PaginatedBlocks, error)
	DocumentBlocks(ctx context.Context, workspaceID, documentID string) ([]Block, error)
	SaveBlock(ctx context.Context, b *Block) error
}

type DefaultService struct {
	repository BlockRepository
}

func NewService(repository BlockRepository) Service {
	return &DefaultService{repository: repository}
}

func (s *DefaultService) GetBlock(ctx context.Context, workspaceID, documentID, blockID string) (*Block, error) {
	b, err := s.repository.FindOne(ctx, workspaceID, documentID, blockID)
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("Block not found", err)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	return b, nil
}

func (s *DefaultService) ListBlocks(ctx context.Context, workspaceID, documentID string, page, pageSize int) (*PaginatedBlocks, error) {
	blocks, meta, err := s.repository.ListByDocument(ctx, workspaceID, documentID, page, pageSize)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if blocks == nil {
		blocks = []Block{}
	}
	return &PaginatedBlocks{Data: blocks, Meta: meta}, nil
}

func (s *DefaultService) DocumentBlocks(ctx context.Context, workspaceID, documentID string) ([]Block, error) {
	blocks, err := s.repository.AllByDocument(ctx, workspaceID, documentID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return blocks, nil
}

func (s *DefaultService) SaveBlock(ctx context.Context, b *Block) error {
	if b.WorkspaceID == "" || b.DocumentID == "" || b.BlockID == "" {
		return errors.BadRequest("Block scope is incomplete", nil)
	}
	if err := s.repository.Upsert(ctx, b); err != nil {
		return errors.Internal(err)
	}
	return nil
}
