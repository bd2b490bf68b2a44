package eggs

import (
	"context"
	"sync"
	"time"

	interf "github.com/tohatch/eggchain/internal/interfaces"
	model "github.com/tohatch/eggchain/internal/models"
	"go.uber.org/zap"
)

// длина префикса "hatch_" в callback data транспорта
const transportPrefixLen = 6

type LedgerService struct {
	mu       sync.RWMutex
	eggs     map[string]*model.Egg // выданные яйца; pending живут только в памяти
	hatched  map[string]int64      // ключ яйца -> кто вылупил
	accounts map[int64]*model.UserAccount

	limiter *RateLimiter
	tasks   *AchievementEngine
	codec   *Codec

	store   interf.SnapshotStorage
	archive interf.ArchiveStorage
	cache   interf.CacheStorage
	notify  interf.Notifier
	logger  *zap.Logger

	dirty chan struct{}
	now   func() time.Time
}

type RedemptionOutcome struct {
	Sender  int64
	Hatcher int64
	Awards  []Award
}

func NewLedgerService(logger *zap.Logger, store interf.SnapshotStorage, archive interf.ArchiveStorage, cache interf.CacheStorage, notify interf.Notifier) (*LedgerService, error) {
	snap, err := store.Load(context.Background())
	if err != nil {
		return nil, err
	}

	l := &LedgerService{
		eggs:     make(map[string]*model.Egg),
		hatched:  make(map[string]int64),
		accounts: make(map[int64]*model.UserAccount),
		limiter:  NewRateLimiter(FreeEggsPerDay),
		tasks:    NewAchievementEngine(DefaultAchievements()),
		codec:    NewCodec(transportPrefixLen, logger),
		store:    store,
		archive:  archive,
		cache:    cache,
		notify:   notify,
		logger:   logger,
		dirty:    make(chan struct{}, 1),
		now:      time.Now,
	}

	for key, hatcher := range snap.Hatched {
		l.hatched[key] = hatcher
	}
	for user, acc := range snap.Accounts {
		c := *acc
		l.accounts[user] = &c
	}
	l.limiter.Restore(snap.Quotas)
	l.tasks.Restore(snap.Achievements)
	return l, nil
}

// счет пользователя, создается при первом обращении
func (l *LedgerService) account(user int64) *model.UserAccount {
	acc, ok := l.accounts[user]
	if !ok {
		acc = &model.UserAccount{}
		l.accounts[user] = acc
	}
	return acc
}

// проверка порогов по обеим метрикам и начисление бонусов, под блокировкой
func (l *LedgerService) evaluateLocked(user int64, acc *model.UserAccount) []Award {
	awards := l.tasks.Evaluate(user, MetricSent, acc.Sent)
	awards = append(awards, l.tasks.Evaluate(user, MetricHatchedByOthers, acc.HatchedByOthers)...)
	for _, aw := range awards {
		acc.Points += aw.Bonus
	}
	return awards
}

// Выдача бесплатного яйца. Лимит проверяется до создания яйца:
// при исчерпании состояние не меняется и id не расходуется
func (l *LedgerService) Issue(ctx context.Context, sender int64) (model.Egg, error) {
	l.mu.Lock()
	if _, err := l.limiter.TryConsume(sender, l.now()); err != nil {
		l.mu.Unlock()
		return model.Egg{}, err
	}

	egg := model.Egg{ID: l.codec.NewEggID(), Sender: sender, Status: model.PENDING}
	l.eggs[egg.Key()] = &egg
	acc := l.account(sender)
	acc.Sent++
	awards := l.evaluateLocked(sender, acc)
	l.mu.Unlock()

	l.afterMutation(ctx, sender)
	l.archiveSent(ctx, egg, false)
	l.notifyAwards(ctx, sender, awards)
	return egg, nil
}

// Вылупление яйца. Проверки и смена статуса неделимы:
// из конкурирующих попыток ровно одна получает успех
func (l *LedgerService) Redeem(ctx context.Context, sender int64, eggID string, hatcher int64) (RedemptionOutcome, error) {
	key := model.EggKey(sender, eggID)

	l.mu.Lock()
	egg, ok := l.eggs[key]
	if !ok {
		// яйцо из снапшота: сам объект не сохраняется, ключ остается
		_, was := l.hatched[key]
		l.mu.Unlock()
		if was {
			return RedemptionOutcome{}, model.ErrAlreadyHatched
		}
		return RedemptionOutcome{}, model.ErrNotFound
	}
	if egg.Status == model.HATCHED {
		l.mu.Unlock()
		return RedemptionOutcome{}, model.ErrAlreadyHatched
	}
	// строго до любых мутаций
	if hatcher == sender {
		l.mu.Unlock()
		return RedemptionOutcome{}, model.ErrSelfHatch
	}

	egg.Status = model.HATCHED
	egg.HatchedBy = hatcher
	l.hatched[key] = hatcher

	ha := l.account(hatcher)
	sa := l.account(sender)
	ha.Hatched++
	ha.Points += 1
	sa.HatchedByOthers++
	sa.Points += 2

	hatcherAwards := l.evaluateLocked(hatcher, ha)
	senderAwards := l.evaluateLocked(sender, sa)
	out := RedemptionOutcome{
		Sender:  sender,
		Hatcher: hatcher,
		Awards:  append(append([]Award{}, hatcherAwards...), senderAwards...),
	}
	hatchedEgg := *egg
	l.mu.Unlock()

	l.afterMutation(ctx, sender, hatcher)
	l.archiveHatched(ctx, hatchedEgg)
	l.notifyAwards(ctx, hatcher, hatcherAwards)
	l.notifyAwards(ctx, sender, senderAwards)
	return out, nil
}

// Payload для счета на оплату яйца: id зарезервирован,
// но в реестр яйцо попадет только после подтверждения платежа
func (l *LedgerService) PaymentPayload(sender int64) string {
	return l.codec.EncodePayment(sender, l.codec.NewEggID())
}

// Фаза 0: подтверждение перед оплатой.
// Ограничений по "наличию" яиц нет, валидный payload всегда одобряется
func (l *LedgerService) PreCheckout(payload string) bool {
	_, _, err := l.codec.DecodePayment(payload)
	return err == nil
}

// Подтверждение платежа: плательщик обязан совпадать с отправителем
// из payload, иначе яйцо не создается. Платный путь не расходует дневной лимит.
// События оплаты доставляются минимум один раз, повтор не создает яйцо заново:
// вылупленное остается вылупленным, ожидающее возвращается как есть
func (l *LedgerService) ConfirmPayment(ctx context.Context, payer int64, payload string) (model.Egg, error) {
	sender, eggID, err := l.codec.DecodePayment(payload)
	if err != nil {
		return model.Egg{}, err
	}
	if payer != sender {
		l.logger.Warn("payment user mismatch",
			zap.Int64("payer", payer),
			zap.Int64("sender", sender),
		)
		return model.Egg{}, model.ErrPayerMismatch
	}
	key := model.EggKey(sender, eggID)

	l.mu.Lock()
	if _, was := l.hatched[key]; was {
		l.mu.Unlock()
		return model.Egg{}, model.ErrAlreadyHatched
	}
	if exist, ok := l.eggs[key]; ok {
		egg := *exist
		l.mu.Unlock()
		return egg, nil
	}
	egg := model.Egg{ID: eggID, Sender: sender, Status: model.PENDING}
	l.eggs[key] = &egg
	acc := l.account(sender)
	acc.Sent++
	awards := l.evaluateLocked(sender, acc)
	l.mu.Unlock()

	l.afterMutation(ctx, sender)
	l.archiveSent(ctx, egg, true)
	l.notifyAwards(ctx, sender, awards)
	return egg, nil
}

// Подписка на канал: проверка выполнена транспортом,
// здесь только разовое начисление бонуса.
// Флаг задания и баллы меняются под одной блокировкой:
// снапшот не может увидеть флаг без начисленного бонуса
func (l *LedgerService) ConfirmSubscription(ctx context.Context, user int64, subscribed bool) bool {
	if !subscribed {
		return false
	}

	l.mu.Lock()
	aw, ok := l.tasks.Grant(user, TaskSubscribe, SubscribeBonus)
	if !ok {
		l.mu.Unlock()
		return false
	}
	l.account(user).Points += aw.Bonus
	l.mu.Unlock()

	l.afterMutation(ctx, user)
	l.notifyAwards(ctx, user, []Award{aw})
	return true
}

// Статистика пользователя
func (l *LedgerService) Stats(ctx context.Context, user int64) model.UserStats {
	if l.cache != nil {
		st, err := l.cache.GetStats(ctx, user)
		if err == nil {
			return st
		}
	}

	l.mu.RLock()
	st := model.UserStats{Tasks: l.tasks.Completed(user)}
	if acc, ok := l.accounts[user]; ok {
		st.Hatched = acc.Hatched
		st.HatchedByOthers = acc.HatchedByOthers
		st.Sent = acc.Sent
		st.Points = acc.Points
	}
	l.mu.RUnlock()

	if l.cache != nil {
		if err := l.cache.SetStats(ctx, user, st); err != nil {
			l.logger.Error("stats cache set", zap.Error(err))
		}
	}
	return st
}

// Информация о яйце по ключу
func (l *LedgerService) EggInfo(sender int64, eggID string) (model.Egg, error) {
	key := model.EggKey(sender, eggID)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if egg, ok := l.eggs[key]; ok {
		return *egg, nil
	}
	if hatcher, ok := l.hatched[key]; ok {
		return model.Egg{ID: eggID, Sender: sender, Status: model.HATCHED, HatchedBy: hatcher}, nil
	}
	return model.Egg{}, model.ErrNotFound
}

// Декодирование строки транспорта
func (l *LedgerService) DecodeWire(wire string) (sender int64, eggID string, err error) {
	return l.codec.Decode(wire)
}

// отметить снапшот устаревшим, записи коалесцируются
func (l *LedgerService) markDirty() {
	select {
	case l.dirty <- struct{}{}:
	default:
	}
}

func (l *LedgerService) afterMutation(ctx context.Context, users ...int64) {
	l.markDirty()
	if l.cache == nil {
		return
	}
	for _, u := range users {
		if err := l.cache.InvalidateStats(ctx, u); err != nil {
			l.logger.Error("stats cache invalidate", zap.Error(err), zap.Int64("user", u))
		}
	}
}

func (l *LedgerService) snapshot() *model.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := model.NewSnapshot()
	for key, hatcher := range l.hatched {
		snap.Hatched[key] = hatcher
	}
	for user, acc := range l.accounts {
		c := *acc
		snap.Accounts[user] = &c
	}
	snap.Quotas = l.limiter.Export()
	snap.Achievements = l.tasks.Export()
	return snap
}

// Фоновая запись снапшота после мутаций.
// Ошибка записи не фатальна: память остается источником истины,
// следующая успешная запись сохранит полное состояние
func (l *LedgerService) SnapshotLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if err := l.store.Save(context.Background(), l.snapshot()); err != nil {
				l.logger.Error("final snapshot save", zap.Error(err))
			}
			return
		case <-l.dirty:
			if err := l.store.Save(ctx, l.snapshot()); err != nil {
				l.logger.Error("snapshot save", zap.Error(err))
			}
		}
	}
}

func (l *LedgerService) archiveSent(ctx context.Context, egg model.Egg, paid bool) {
	if l.archive == nil {
		return
	}
	if err := l.archive.EggSent(ctx, egg, paid); err != nil {
		l.logger.Error("archive egg sent", zap.Error(err), zap.String("egg", egg.Key()))
	}
}

func (l *LedgerService) archiveHatched(ctx context.Context, egg model.Egg) {
	if l.archive == nil {
		return
	}
	if err := l.archive.EggHatched(ctx, egg); err != nil {
		l.logger.Error("archive egg hatched", zap.Error(err), zap.String("egg", egg.Key()))
	}
}

// уведомления о выполненных заданиях, fire-and-forget
func (l *LedgerService) notifyAwards(ctx context.Context, user int64, awards []Award) {
	for _, aw := range awards {
		l.publish(ctx, model.Notification{
			UserID:      user,
			Kind:        "achievement",
			Achievement: aw.ID,
			Points:      aw.Bonus,
		})
	}
}

func (l *LedgerService) publish(ctx context.Context, note model.Notification) {
	if l.notify == nil {
		return
	}
	if err := l.notify.Notify(ctx, note); err != nil {
		l.logger.Error("notify", zap.Error(err), zap.Int64("user", note.UserID), zap.String("kind", note.Kind))
	}
}
