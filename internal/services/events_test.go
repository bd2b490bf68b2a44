package eggs

import (
	"context"
	"encoding/json"
	"testing"

	model "github.com/tohatch/eggchain/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

// леджер с мок-уведомлениями, исходящие собираются в срез
func newEventLedger(t *testing.T) (*LedgerService, *[]model.Notification) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := NewMockSnapshotStorage(ctrl)
	store.EXPECT().Load(gomock.Any()).Return(model.NewSnapshot(), nil)

	var sent []model.Notification
	notify := NewMockNotifier(ctrl)
	notify.EXPECT().Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, note model.Notification) error {
			sent = append(sent, note)
			return nil
		}).AnyTimes()

	l, err := NewLedgerService(zap.NewNop(), store, nil, nil, notify)
	require.NoError(t, err)
	return l, &sent
}

func event(t *testing.T, ev Event) string {
	t.Helper()
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	return string(raw)
}

func TestHandleEventIssue(t *testing.T) {
	l, sent := newEventLedger(t)
	ctx := context.Background()

	err := l.HandleEvent(ctx, event(t, Event{Type: EventIssue, UserID: 111}))
	require.NoError(t, err)

	require.Len(t, *sent, 1)
	note := (*sent)[0]
	require.Equal(t, "egg_sent", note.Kind)
	require.Equal(t, int64(111), note.UserID)

	// payload пригоден для вылупления
	sender, eggID, err := l.DecodeWire(note.Payload)
	require.NoError(t, err)
	require.Equal(t, int64(111), sender)
	require.NotEmpty(t, eggID)
}

func TestHandleEventHatch(t *testing.T) {
	l, sent := newEventLedger(t)
	ctx := context.Background()

	egg, err := l.Issue(ctx, 111)
	require.NoError(t, err)
	*sent = nil

	wire := l.codec.Encode(egg.Sender, egg.ID)
	err = l.HandleEvent(ctx, event(t, Event{Type: EventHatch, UserID: 222, Data: wire}))
	require.NoError(t, err)

	require.Len(t, *sent, 2)
	require.Equal(t, "hatched", (*sent)[0].Kind)
	require.Equal(t, int64(222), (*sent)[0].UserID)
	require.Equal(t, "egg_hatched_by_other", (*sent)[1].Kind)
	require.Equal(t, int64(111), (*sent)[1].UserID)

	// повтор - already_hatched, без начислений
	*sent = nil
	err = l.HandleEvent(ctx, event(t, Event{Type: EventHatch, UserID: 333, Data: wire}))
	require.NoError(t, err)
	require.Len(t, *sent, 1)
	require.Equal(t, "already_hatched", (*sent)[0].Kind)
}

func TestHandleEventHatchErrors(t *testing.T) {
	l, sent := newEventLedger(t)
	ctx := context.Background()

	egg, err := l.Issue(ctx, 111)
	require.NoError(t, err)
	wire := l.codec.Encode(egg.Sender, egg.ID)

	tests := []struct {
		ev   Event
		kind string
	}{
		{Event{Type: EventHatch, UserID: 222, Data: "garbage"}, "invalid_data"},
		{Event{Type: EventHatch, UserID: 111, Data: wire}, "self_hatch"},
		{Event{Type: EventHatch, UserID: 222, Data: "999|deadbeef"}, "not_found"},
	}
	for _, ts := range tests {
		*sent = nil
		err := l.HandleEvent(ctx, event(t, ts.ev))
		require.NoError(t, err, "kind=%s", ts.kind)
		require.Len(t, *sent, 1, "kind=%s", ts.kind)
		require.Equal(t, ts.kind, (*sent)[0].Kind)
	}
}

func TestHandleEventQuotaExceeded(t *testing.T) {
	l, sent := newEventLedger(t)
	ctx := context.Background()

	for i := 0; i < FreeEggsPerDay; i++ {
		err := l.HandleEvent(ctx, event(t, Event{Type: EventIssue, UserID: 111}))
		require.NoError(t, err)
	}

	*sent = nil
	err := l.HandleEvent(ctx, event(t, Event{Type: EventIssue, UserID: 111}))
	require.NoError(t, err)

	require.Len(t, *sent, 1)
	note := (*sent)[0]
	require.Equal(t, "quota_exceeded", note.Kind)
	require.True(t, l.PreCheckout(note.Payload))
}

func TestHandleEventPayment(t *testing.T) {
	l, sent := newEventLedger(t)
	ctx := context.Background()

	err := l.HandleEvent(ctx, event(t, Event{Type: EventPayRequest, UserID: 111}))
	require.NoError(t, err)
	require.Equal(t, "invoice", (*sent)[0].Kind)
	payload := (*sent)[0].Payload

	*sent = nil
	err = l.HandleEvent(ctx, event(t, Event{Type: EventPreCheckout, UserID: 111, Data: payload}))
	require.NoError(t, err)
	require.Equal(t, "precheckout_ok", (*sent)[0].Kind)

	// оплата чужого payload отклоняется
	*sent = nil
	err = l.HandleEvent(ctx, event(t, Event{Type: EventPayment, UserID: 222, Data: payload}))
	require.NoError(t, err)
	require.Equal(t, "payment_rejected", (*sent)[0].Kind)

	*sent = nil
	err = l.HandleEvent(ctx, event(t, Event{Type: EventPayment, UserID: 111, Data: payload}))
	require.NoError(t, err)
	require.Equal(t, "egg_sent", (*sent)[0].Kind)

	// повтор события оплаты после вылупления яйца
	sender, eggID, err := l.DecodeWire((*sent)[0].Payload)
	require.NoError(t, err)
	_, err = l.Redeem(ctx, sender, eggID, 333)
	require.NoError(t, err)

	*sent = nil
	err = l.HandleEvent(ctx, event(t, Event{Type: EventPayment, UserID: 111, Data: payload}))
	require.NoError(t, err)
	require.Equal(t, "already_hatched", (*sent)[0].Kind)
}

func TestHandleEventSubscription(t *testing.T) {
	l, sent := newEventLedger(t)
	ctx := context.Background()

	err := l.HandleEvent(ctx, event(t, Event{Type: EventSubscription, UserID: 111, Subscribed: true}))
	require.NoError(t, err)

	require.Len(t, *sent, 1)
	require.Equal(t, "achievement", (*sent)[0].Kind)
	require.Equal(t, TaskSubscribe, (*sent)[0].Achievement)
	require.Equal(t, int64(SubscribeBonus), l.Stats(ctx, 111).Points)
}

func TestHandleEventBad(t *testing.T) {
	l, _ := newEventLedger(t)
	ctx := context.Background()

	require.Error(t, l.HandleEvent(ctx, "not json"))
	require.Error(t, l.HandleEvent(ctx, event(t, Event{Type: "dance", UserID: 111})))
}
