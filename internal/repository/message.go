package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/LiveChat/internal/model"
)

// IMessageRepository is the append-only message store. There is deliberately
// no update or delete.
type IMessageRepository interface {
	Create(ctx context.Context, message *model.Message) error
	List(ctx context.Context) ([]model.Message, error)
}

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) IMessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts message; ID and CreatedAt are filled from the database.
func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// List returns the full history, oldest first.
func (r *MessageRepository) List(ctx context.Context) ([]model.Message, error) {
	messages := make([]model.Message, 0)
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
