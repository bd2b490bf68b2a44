package eggs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	model "github.com/tohatch/eggchain/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *FileSnapshot {
	t.Helper()
	t.Setenv("EGGCHAIN_DATA", filepath.Join(t.TempDir(), "bot_data.json"))
	return NewFileSnapshot(zap.NewNop())
}

func TestLoadMissing(t *testing.T) {
	store := newTestStore(t)

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, snap.Version)
	require.Empty(t, snap.Hatched)
	require.Empty(t, snap.Accounts)
	require.NotNil(t, snap.Quotas)
	require.NotNil(t, snap.Achievements)
}

func TestSaveLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	snap := model.NewSnapshot()
	snap.Hatched["111_ab12cd34"] = 222
	snap.Accounts[111] = &model.UserAccount{Points: 2, Sent: 1, HatchedByOthers: 1}
	snap.Accounts[222] = &model.UserAccount{Points: 334, Hatched: 1}
	snap.Quotas[111] = model.DailyQuota{Day: "2025-03-10", Count: 3}
	snap.Achievements[222] = map[string]bool{"subscribed_to_cocoin": true}

	require.NoError(t, store.Save(ctx, snap))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, snap.Hatched, got.Hatched)
	require.Equal(t, snap.Accounts, got.Accounts)
	require.Equal(t, snap.Quotas, got.Quotas)
	require.Equal(t, snap.Achievements, got.Achievements)
}

func TestLoadLegacy(t *testing.T) {
	// формат питоновского бота: id строками, вылупленные - списком
	legacy := `{
		"hatched_eggs": ["111_ab12cd34", "333_f3a9b2c8"],
		"eggs_hatched_by_user": {"222": 5},
		"user_eggs_hatched_by_others": {"111": 2},
		"eggs_sent_by_user": {"111": 7, "bogus": 1},
		"daily_eggs_sent": {"111": {"date": "2025-03-10", "count": 3}},
		"egg_points": {"111": 4, "222": 338},
		"completed_tasks": {"222": {"subscribed_to_cocoin": true}}
	}`

	path := filepath.Join(t.TempDir(), "bot_data.json")
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))
	t.Setenv("EGGCHAIN_DATA", path)
	store := NewFileSnapshot(zap.NewNop())

	snap, err := store.Load(context.Background())
	require.NoError(t, err)

	// вылупивший в легаси-формате неизвестен
	require.Equal(t, map[string]int64{"111_ab12cd34": 0, "333_f3a9b2c8": 0}, snap.Hatched)

	require.Equal(t, int64(7), snap.Accounts[111].Sent)
	require.Equal(t, int64(2), snap.Accounts[111].HatchedByOthers)
	require.Equal(t, int64(4), snap.Accounts[111].Points)
	require.Equal(t, int64(5), snap.Accounts[222].Hatched)
	require.Equal(t, int64(338), snap.Accounts[222].Points)
	require.NotContains(t, snap.Accounts, int64(0))

	require.Equal(t, model.DailyQuota{Day: "2025-03-10", Count: 3}, snap.Quotas[111])
	require.True(t, snap.Achievements[222]["subscribed_to_cocoin"])

	// после пересохранения читается уже текущий формат
	require.NoError(t, store.Save(context.Background(), snap))
	again, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, snap.Hatched, again.Hatched)
	require.Equal(t, snap.Accounts, again.Accounts)
}
