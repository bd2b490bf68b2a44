package eggs

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strconv"

	model "github.com/tohatch/eggchain/internal/models"
	"go.uber.org/zap"
)

type FileSnapshot struct {
	path   string
	logger *zap.Logger
}

func NewFileSnapshot(logger *zap.Logger) *FileSnapshot {
	path := os.Getenv("EGGCHAIN_DATA")
	if path == "" {
		path = "bot_data.json"
	}
	return &FileSnapshot{path, logger}
}

// Загрузка снапшота. Отсутствующий файл - пустое состояние.
// Сначала текущий формат с полем version, затем легаси-формат
// питоновского бота (отдельные мапы, вылупленные яйца списком)
func (f *FileSnapshot) Load(ctx context.Context) (*model.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.NewSnapshot(), nil
	}
	if err != nil {
		return nil, err
	}

	snap := model.NewSnapshot()
	if err := json.Unmarshal(data, snap); err == nil && snap.Version >= 2 {
		normalize(snap)
		return snap, nil
	}
	return f.loadLegacy(data)
}

// Полная перезапись файла. Атомарность записи не гарантируется:
// окно потери между мутацией и снапшотом задокументировано
func (f *FileSnapshot) Save(ctx context.Context, snap *model.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0644)
}

// формат bot_data.json: id пользователей - строки,
// вылупленные яйца - список ключей без того, кто вылупил
type legacySnapshot struct {
	Hatched   []string                    `json:"hatched_eggs"`
	HatchedBy map[string]int64            `json:"eggs_hatched_by_user"`
	MyHatched map[string]int64            `json:"user_eggs_hatched_by_others"`
	Sent      map[string]int64            `json:"eggs_sent_by_user"`
	Daily     map[string]model.DailyQuota `json:"daily_eggs_sent"`
	Points    map[string]int64            `json:"egg_points"`
	Tasks     map[string]map[string]bool  `json:"completed_tasks"`
}

func (f *FileSnapshot) loadLegacy(data []byte) (*model.Snapshot, error) {
	legacy := &legacySnapshot{}
	if err := json.Unmarshal(data, legacy); err != nil {
		return nil, err
	}

	snap := model.NewSnapshot()
	for _, key := range legacy.Hatched {
		snap.Hatched[key] = 0
	}
	account := func(id string) *model.UserAccount {
		user, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			f.logger.Warn("legacy snapshot: bad user id", zap.String("id", id))
			return nil
		}
		acc, ok := snap.Accounts[user]
		if !ok {
			acc = &model.UserAccount{}
			snap.Accounts[user] = acc
		}
		return acc
	}
	for id, count := range legacy.HatchedBy {
		if acc := account(id); acc != nil {
			acc.Hatched = count
		}
	}
	for id, count := range legacy.MyHatched {
		if acc := account(id); acc != nil {
			acc.HatchedByOthers = count
		}
	}
	for id, count := range legacy.Sent {
		if acc := account(id); acc != nil {
			acc.Sent = count
		}
	}
	for id, points := range legacy.Points {
		if acc := account(id); acc != nil {
			acc.Points = points
		}
	}
	for id, quota := range legacy.Daily {
		user, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		snap.Quotas[user] = quota
	}
	for id, tasks := range legacy.Tasks {
		user, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		snap.Achievements[user] = tasks
	}
	f.logger.Info("legacy snapshot migrated",
		zap.Int("accounts", len(snap.Accounts)),
		zap.Int("hatched", len(snap.Hatched)),
	)
	return snap, nil
}

// отсутствующие поля получают явные значения по умолчанию
func normalize(snap *model.Snapshot) {
	if snap.Hatched == nil {
		snap.Hatched = make(map[string]int64)
	}
	if snap.Accounts == nil {
		snap.Accounts = make(map[int64]*model.UserAccount)
	}
	if snap.Quotas == nil {
		snap.Quotas = make(map[int64]model.DailyQuota)
	}
	if snap.Achievements == nil {
		snap.Achievements = make(map[int64]map[string]bool)
	}
}
