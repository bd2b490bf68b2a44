package eggs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	model "github.com/tohatch/eggchain/internal/models"
)

// Типы событий транспорта
const (
	EventIssue        = "issue"
	EventHatch        = "hatch"
	EventPayRequest   = "pay_request"
	EventPreCheckout  = "precheckout"
	EventPayment      = "payment"
	EventSubscription = "subscription"
)

// Событие от транспорта, уже декодированное из апдейта
type Event struct {
	Type       string `json:"type"`
	UserID     int64  `json:"user_id"`
	Data       string `json:"data,omitempty"`
	Subscribed bool   `json:"subscribed,omitempty"`
}

// Обработка одного события. Ошибки домена не возвращаются наверх:
// исход уходит уведомлением, транспорт сам его отрисует
func (l *LedgerService) HandleEvent(ctx context.Context, raw string) error {
	ev := &Event{}
	if err := json.Unmarshal([]byte(raw), ev); err != nil {
		return fmt.Errorf("event decode: %w", err)
	}

	switch ev.Type {
	case EventIssue:
		// выдача считается по запросу: сигнала о выборе
		// результата у транспорта нет
		egg, err := l.Issue(ctx, ev.UserID)
		if errors.Is(err, model.ErrQuotaExceeded) {
			// лимит исчерпан - предлагаем платный путь
			l.publish(ctx, model.Notification{
				UserID:  ev.UserID,
				Kind:    "quota_exceeded",
				Payload: l.PaymentPayload(ev.UserID),
			})
			return nil
		}
		if err != nil {
			return err
		}
		l.publish(ctx, model.Notification{
			UserID:  ev.UserID,
			Kind:    "egg_sent",
			EggKey:  egg.Key(),
			Payload: l.codec.Encode(egg.Sender, egg.ID),
		})

	case EventHatch:
		sender, eggID, err := l.codec.Decode(ev.Data)
		if err != nil {
			l.publish(ctx, model.Notification{UserID: ev.UserID, Kind: "invalid_data"})
			return nil
		}
		out, err := l.Redeem(ctx, sender, eggID, ev.UserID)
		switch {
		case errors.Is(err, model.ErrAlreadyHatched):
			l.publish(ctx, model.Notification{UserID: ev.UserID, Kind: "already_hatched"})
		case errors.Is(err, model.ErrSelfHatch):
			l.publish(ctx, model.Notification{UserID: ev.UserID, Kind: "self_hatch"})
		case errors.Is(err, model.ErrNotFound):
			l.publish(ctx, model.Notification{UserID: ev.UserID, Kind: "not_found"})
		case err != nil:
			return err
		default:
			key := model.EggKey(sender, eggID)
			l.publish(ctx, model.Notification{UserID: out.Hatcher, Kind: "hatched", EggKey: key, Points: 1})
			l.publish(ctx, model.Notification{UserID: out.Sender, Kind: "egg_hatched_by_other", EggKey: key, Points: 2})
		}

	case EventPayRequest:
		l.publish(ctx, model.Notification{
			UserID:  ev.UserID,
			Kind:    "invoice",
			Payload: l.PaymentPayload(ev.UserID),
		})

	case EventPreCheckout:
		kind := "precheckout_ok"
		if !l.PreCheckout(ev.Data) {
			kind = "precheckout_rejected"
		}
		l.publish(ctx, model.Notification{UserID: ev.UserID, Kind: kind, Payload: ev.Data})

	case EventPayment:
		egg, err := l.ConfirmPayment(ctx, ev.UserID, ev.Data)
		switch {
		case errors.Is(err, model.ErrAlreadyHatched):
			// повторная доставка события оплаты по уже вылупленному яйцу
			l.publish(ctx, model.Notification{UserID: ev.UserID, Kind: "already_hatched"})
		case errors.Is(err, model.ErrPayerMismatch), errors.Is(err, model.ErrMalformed):
			l.publish(ctx, model.Notification{UserID: ev.UserID, Kind: "payment_rejected"})
		case err != nil:
			return err
		default:
			l.publish(ctx, model.Notification{
				UserID:  ev.UserID,
				Kind:    "egg_sent",
				EggKey:  egg.Key(),
				Payload: l.codec.Encode(egg.Sender, egg.ID),
			})
		}

	case EventSubscription:
		l.ConfirmSubscription(ctx, ev.UserID, ev.Subscribed)

	default:
		return fmt.Errorf("unknown event type: %s", ev.Type)
	}
	return nil
}
