package eggs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	a := NewAchievementEngine(DefaultAchievements())

	// до порога наград нет
	awards := a.Evaluate(777, MetricSent, 99)
	require.Empty(t, awards)

	// порог достигнут
	awards = a.Evaluate(777, MetricSent, 100)
	require.Len(t, awards, 1)
	require.Equal(t, TaskSend100, awards[0].ID)
	require.Equal(t, int64(500), awards[0].Bonus)

	// повторный вызов ничего не начисляет
	awards = a.Evaluate(777, MetricSent, 150)
	require.Empty(t, awards)

	// другая метрика - другое задание
	awards = a.Evaluate(777, MetricHatchedByOthers, 100)
	require.Len(t, awards, 1)
	require.Equal(t, TaskHatch100, awards[0].ID)
}

func TestEvaluatePerUser(t *testing.T) {
	a := NewAchievementEngine(DefaultAchievements())

	awards := a.Evaluate(777, MetricSent, 100)
	require.Len(t, awards, 1)

	// флаг другого пользователя независим
	awards = a.Evaluate(888, MetricSent, 100)
	require.Len(t, awards, 1)
}

func TestGrant(t *testing.T) {
	a := NewAchievementEngine(DefaultAchievements())

	award, ok := a.Grant(777, TaskSubscribe, SubscribeBonus)
	require.True(t, ok)
	require.Equal(t, TaskSubscribe, award.ID)
	require.Equal(t, int64(SubscribeBonus), award.Bonus)

	// повторная подписка не начисляется
	_, ok = a.Grant(777, TaskSubscribe, SubscribeBonus)
	require.False(t, ok)

	require.True(t, a.Completed(777)[TaskSubscribe])
}

func TestAchievementsExportRestore(t *testing.T) {
	a := NewAchievementEngine(DefaultAchievements())
	a.Evaluate(777, MetricSent, 100)
	a.Grant(777, TaskSubscribe, SubscribeBonus)

	restored := NewAchievementEngine(DefaultAchievements())
	restored.Restore(a.Export())

	require.Empty(t, restored.Evaluate(777, MetricSent, 200))
	_, ok := restored.Grant(777, TaskSubscribe, SubscribeBonus)
	require.False(t, ok)

	done := restored.Completed(777)
	require.True(t, done[TaskSend100])
	require.True(t, done[TaskSubscribe])
}
