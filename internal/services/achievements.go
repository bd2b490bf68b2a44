package eggs

import (
	"sync"
)

// Метрики заданий
const (
	MetricSent = iota
	MetricHatchedByOthers
)

// Задания
const (
	TaskSend100   = "send_100_eggs"
	TaskHatch100  = "hatch_100_eggs"
	TaskSubscribe = "subscribed_to_cocoin"
)

// Бонус за подписку на канал
const SubscribeBonus = 333

type Achievement struct {
	ID        string
	Metric    int
	Threshold int64
	Bonus     int64
}

func DefaultAchievements() []Achievement {
	return []Achievement{
		{TaskSend100, MetricSent, 100, 500},
		{TaskHatch100, MetricHatchedByOthers, 100, 500},
	}
}

type Award struct {
	ID    string `json:"id"`
	Bonus int64  `json:"bonus"`
}

type AchievementEngine struct {
	mu        sync.Mutex
	table     []Achievement
	completed map[int64]map[string]bool
}

func NewAchievementEngine(table []Achievement) *AchievementEngine {
	return &AchievementEngine{
		table:     table,
		completed: make(map[int64]map[string]bool),
	}
}

// Проверка порогов по метрике, каждое задание засчитывается один раз.
// Установка флага - единственная точка начисления бонуса,
// повторный вызов ничего не возвращает
func (a *AchievementEngine) Evaluate(user int64, metric int, value int64) (awards []Award) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, t := range a.table {
		if t.Metric != metric || value < t.Threshold {
			continue
		}
		if a.completed[user][t.ID] {
			continue
		}
		a.markLocked(user, t.ID)
		awards = append(awards, Award{t.ID, t.Bonus})
	}
	return awards
}

// Разовое задание вне таблицы порогов (подписка на канал)
func (a *AchievementEngine) Grant(user int64, id string, bonus int64) (Award, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.completed[user][id] {
		return Award{}, false
	}
	a.markLocked(user, id)
	return Award{id, bonus}, true
}

func (a *AchievementEngine) markLocked(user int64, id string) {
	if a.completed[user] == nil {
		a.completed[user] = make(map[string]bool)
	}
	a.completed[user][id] = true
}

// Выполненные задания пользователя
func (a *AchievementEngine) Completed(user int64) map[string]bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]bool, len(a.completed[user]))
	for id, done := range a.completed[user] {
		out[id] = done
	}
	return out
}

func (a *AchievementEngine) Export() map[int64]map[string]bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[int64]map[string]bool, len(a.completed))
	for u, tasks := range a.completed {
		c := make(map[string]bool, len(tasks))
		for id, done := range tasks {
			c[id] = done
		}
		out[u] = c
	}
	return out
}

func (a *AchievementEngine) Restore(completed map[int64]map[string]bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for u, tasks := range completed {
		for id, done := range tasks {
			if !done {
				continue
			}
			a.markLocked(u, id)
		}
	}
}
