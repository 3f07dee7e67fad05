package entity

// UserState шаг диалога с пользователем бота.
type UserState string

const (
	StateIdle         UserState = "idle"          // ждём команду
	StateAwaitingLeaf UserState = "awaiting_leaf" // ждём фото листа
	StateDiagnosing   UserState = "diagnosing"    // идёт классификация
)

// User собеседник бота.
type User struct {
	ID        int64     // Telegram User ID
	ChatID    int64     // Telegram Chat ID
	State     UserState // текущий шаг диалога
	Diagnosed int       // сколько листьев проверено за сессию
}

// NewUser создаёт пользователя в состоянии ожидания команды.
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateIdle,
	}
}

// SetState переводит пользователя на новый шаг диалога.
func (u *User) SetState(state UserState) {
	u.State = state
}

// Busy сообщает, что для пользователя уже идёт диагностика.
func (u *User) Busy() bool {
	return u.State == StateDiagnosing
}

// CompleteDiagnosis фиксирует завершённую проверку и возвращает в ожидание.
func (u *User) CompleteDiagnosis() {
	u.Diagnosed++
	u.State = StateIdle
}
