package eggs

import (
	"errors"
	"strconv"
	"time"
)

// Статусы яйца
const (
	PENDING = 0
	HATCHED = 1
)

// Яйцо
type Egg struct {
	ID        string `json:"egg_id"`
	Sender    int64  `json:"sender_id"`
	Status    int    `json:"status"`
	HatchedBy int64  `json:"hatched_by,omitempty"`
}

// Ключ яйца: уникальность определяет пара (отправитель, id),
// укороченные id могут совпадать у разных отправителей
func (e Egg) Key() string {
	return EggKey(e.Sender, e.ID)
}

func EggKey(sender int64, eggID string) string {
	return strconv.FormatInt(sender, 10) + "_" + eggID
}

// Счет пользователя
type UserAccount struct {
	Points          int64 `json:"egg_points"`
	Sent            int64 `json:"eggs_sent"`
	Hatched         int64 `json:"eggs_hatched"`
	HatchedByOthers int64 `json:"my_eggs_hatched"`
}

// Дневной лимит бесплатных яиц
type DailyQuota struct {
	Day   string `json:"date"`
	Count int    `json:"count"`
}

// Статистика пользователя для mini app
type UserStats struct {
	Hatched         int64           `json:"hatched_by_me"`
	HatchedByOthers int64           `json:"my_eggs_hatched"`
	Sent            int64           `json:"eggs_sent"`
	Points          int64           `json:"egg_points"`
	Tasks           map[string]bool `json:"tasks"`
}

// Запись яйца в архиве (explorer)
type EggRecord struct {
	EggID     string    `json:"egg_id"`
	Sender    int64     `json:"sender_id"`
	HatchedBy int64     `json:"hatched_by,omitempty"`
	Paid      bool      `json:"paid,omitempty"`
	SentAt    time.Time `json:"timestamp_sent"`
	HatchedAt time.Time `json:"timestamp_hatched,omitzero"`
	Status    string    `json:"status"`
}

// Уведомление для транспорта, отправка fire-and-forget
type Notification struct {
	UserID      int64  `json:"user_id"`
	Kind        string `json:"kind"`
	EggKey      string `json:"egg_key,omitempty"`
	Payload     string `json:"payload,omitempty"`
	Points      int64  `json:"points,omitempty"`
	Achievement string `json:"achievement,omitempty"`
}

// Снапшот всего состояния, версия 2.
// Версия 1 - формат файла питоновского бота, читается при загрузке
type Snapshot struct {
	Version      int                       `json:"version"`
	Hatched      map[string]int64          `json:"hatched_eggs"`
	Accounts     map[int64]*UserAccount    `json:"accounts"`
	Quotas       map[int64]DailyQuota      `json:"daily_eggs_sent"`
	Achievements map[int64]map[string]bool `json:"completed_tasks"`
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Version:      2,
		Hatched:      make(map[string]int64),
		Accounts:     make(map[int64]*UserAccount),
		Quotas:       make(map[int64]DailyQuota),
		Achievements: make(map[int64]map[string]bool),
	}
}

var (
	ErrNotFound       = errors.New("egg not found")
	ErrAlreadyHatched = errors.New("egg is already hatched")
	ErrSelfHatch      = errors.New("sender can not hatch their own egg")
	ErrQuotaExceeded  = errors.New("daily egg limit reached")
	ErrPayerMismatch  = errors.New("payment user mismatch")
	ErrMalformed      = errors.New("malformed egg data")
)
