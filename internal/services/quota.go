package eggs

import (
	"sync"
	"time"

	model "github.com/tohatch/eggchain/internal/models"
)

// Бесплатных яиц в день
const FreeEggsPerDay = 10

type RateLimiter struct {
	mu    sync.Mutex
	limit int
	days  map[int64]model.DailyQuota
}

func NewRateLimiter(limit int) *RateLimiter {
	return &RateLimiter{
		limit: limit,
		days:  make(map[int64]model.DailyQuota),
	}
}

// Проверка и инкремент дневного счетчика одним действием.
// При смене календарного дня счетчик сбрасывается, остаток не переносится
func (r *RateLimiter) TryConsume(user int64, today time.Time) (remaining int, err error) {
	day := today.Format("2006-01-02")

	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.days[user]
	if q.Day != day {
		q = model.DailyQuota{Day: day}
	}
	if q.Count >= r.limit {
		r.days[user] = q
		return 0, model.ErrQuotaExceeded
	}
	q.Count++
	r.days[user] = q
	return r.limit - q.Count, nil
}

func (r *RateLimiter) Export() map[int64]model.DailyQuota {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[int64]model.DailyQuota, len(r.days))
	for u, q := range r.days {
		out[u] = q
	}
	return out
}

func (r *RateLimiter) Restore(days map[int64]model.DailyQuota) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for u, q := range days {
		r.days[u] = q
	}
}
