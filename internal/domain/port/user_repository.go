package port

import (
	"context"

	"leaf-doctor/internal/domain/entity"
)

// UserRepository хранилище диалогов бота.
type UserRepository interface {
	// Get возвращает копию пользователя, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	// Update атомарно применяет fn к пользователю; ошибка fn отменяет изменения
	Update(ctx context.Context, userID, chatID int64, fn func(u *entity.User) error) (*entity.User, error)
}
