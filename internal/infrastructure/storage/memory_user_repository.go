package storage

import (
	"context"
	"sync"

	"leaf-doctor/internal/domain/entity"
	"leaf-doctor/internal/domain/port"
)

// MemoryUserRepository диалоги в памяти процесса. Наружу отдаются копии,
// поэтому вызывающий код не гоняется за общими указателями.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[int64]entity.User
}

// NewMemoryUserRepository создаёт пустое хранилище.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[int64]entity.User)}
}

func (r *MemoryUserRepository) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.load(userID, chatID)
	return &u, nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, userID, chatID int64, fn func(u *entity.User) error) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.load(userID, chatID)
	if err := fn(&u); err != nil {
		return nil, err
	}
	r.users[userID] = u
	return &u, nil
}

// Len число известных пользователей.
func (r *MemoryUserRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *MemoryUserRepository) load(userID, chatID int64) entity.User {
	if u, ok := r.users[userID]; ok {
		return u
	}
	return *entity.NewUser(userID, chatID)
}

var _ port.UserRepository = (*MemoryUserRepository)(nil)
