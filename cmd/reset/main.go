// Обнуление баллов и счетчиков отправки.
// Статистика вылупления и выполненные задания сохраняются
package main

import (
	"context"

	db "github.com/tohatch/eggchain/internal/db"
	model "github.com/tohatch/eggchain/internal/models"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()
	store := db.NewFileSnapshot(logger)

	snap, err := store.Load(ctx)
	if err != nil {
		logger.Error("load snapshot", zap.Error(err))
		panic(err)
	}

	for _, acc := range snap.Accounts {
		acc.Points = 0
		acc.Sent = 0
	}
	snap.Quotas = make(map[int64]model.DailyQuota)

	if err := store.Save(ctx, snap); err != nil {
		logger.Error("save snapshot", zap.Error(err))
		panic(err)
	}

	logger.Info("points and send counters reset",
		zap.Int("accounts", len(snap.Accounts)),
	)
}
