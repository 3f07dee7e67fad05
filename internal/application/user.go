package app

import (
	"context"
	"errors"

	"leaf-doctor/internal/domain/entity"
	"leaf-doctor/internal/domain/port"
)

// ErrBusy у пользователя уже идёт диагностика.
var ErrBusy = errors.New("diagnosis already in progress")

// UserService шаги диалога бота.
type UserService struct {
	repo port.UserRepository
}

func NewUserService(repo port.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *UserService) SetState(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error) {
	return s.repo.Update(ctx, userID, chatID, func(u *entity.User) error {
		u.SetState(state)
		return nil
	})
}

// AwaitLeaf /diagnose: ждём фото листа.
func (s *UserService) AwaitLeaf(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateAwaitingLeaf)
}

// Cancel возвращает в ожидание команды. Идущую диагностику не прерывает.
func (s *UserService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Update(ctx, userID, chatID, func(u *entity.User) error {
		if !u.Busy() {
			u.SetState(entity.StateIdle)
		}
		return nil
	})
}

// BeginDiagnosis занимает пользователя; второй снимок до ответа получает ErrBusy.
func (s *UserService) BeginDiagnosis(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Update(ctx, userID, chatID, func(u *entity.User) error {
		if u.Busy() {
			return ErrBusy
		}
		u.SetState(entity.StateDiagnosing)
		return nil
	})
}

// FinishDiagnosis освобождает пользователя; успешные проверки считаются.
func (s *UserService) FinishDiagnosis(ctx context.Context, userID, chatID int64, ok bool) (*entity.User, error) {
	return s.repo.Update(ctx, userID, chatID, func(u *entity.User) error {
		if ok {
			u.CompleteDiagnosis()
			return nil
		}
		u.SetState(entity.StateIdle)
		return nil
	})
}
