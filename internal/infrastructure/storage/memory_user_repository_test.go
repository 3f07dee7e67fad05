package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"leaf-doctor/internal/domain/entity"
)

func TestMemoryUserRepository_GetCreates(t *testing.T) {
	repo := NewMemoryUserRepository()
	u, err := repo.Get(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateIdle, u.State)

	// Get не сохраняет нового пользователя
	require.Equal(t, 0, repo.Len())
}

func TestMemoryUserRepository_UpdateIsolated(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	u, err := repo.Update(ctx, 1, 10, func(u *entity.User) error {
		u.SetState(entity.StateAwaitingLeaf)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingLeaf, u.State)

	u.SetState(entity.StateDiagnosing)
	stored, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingLeaf, stored.State)
}

func TestMemoryUserRepository_UpdateErrorRollsBack(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := repo.Update(ctx, 1, 10, func(u *entity.User) error {
		u.SetState(entity.StateDiagnosing)
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateIdle, stored.State)
}

func TestMemoryUserRepository_ConcurrentUpdates(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Update(ctx, 7, 70, func(u *entity.User) error {
				u.CompleteDiagnosis()
				return nil
			})
		}()
	}
	wg.Wait()

	u, err := repo.Get(ctx, 7, 70)
	require.NoError(t, err)
	require.Equal(t, 50, u.Diagnosed)
}
