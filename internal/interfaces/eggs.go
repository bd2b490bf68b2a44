package eggs

import (
	"context"

	model "github.com/tohatch/eggchain/internal/models"
)

//go:generate mockgen -destination=./../services/mock_eggs_test.go -package=eggs . SnapshotStorage,Notifier

type SnapshotStorage interface {
	Load(ctx context.Context) (*model.Snapshot, error)
	Save(ctx context.Context, snap *model.Snapshot) error
}

type ArchiveStorage interface {
	EggSent(ctx context.Context, egg model.Egg, paid bool) error
	EggHatched(ctx context.Context, egg model.Egg) error
	GetEgg(ctx context.Context, sender int64, eggID string) (model.EggRecord, error)
	GetUserEggs(ctx context.Context, sender int64) ([]model.EggRecord, error)
}

type CacheStorage interface {
	GetStats(ctx context.Context, user int64) (model.UserStats, error)
	SetStats(ctx context.Context, user int64, stats model.UserStats) error
	InvalidateStats(ctx context.Context, user int64) error
}

type Notifier interface {
	Notify(ctx context.Context, note model.Notification) error
}
