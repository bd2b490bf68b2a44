package eggs

import (
	"strconv"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	model "github.com/tohatch/eggchain/internal/models"
	"go.uber.org/zap"
)

// лимит Telegram на callback data - 64 байта
const wireBudget = 64

const payPrefix = "egg_payment_"

type Codec struct {
	prefixLen int // длина транспортного префикса ("hatch_"), входит в бюджет
	logger    *zap.Logger
}

func NewCodec(prefixLen int, logger *zap.Logger) *Codec {
	return &Codec{prefixLen, logger}
}

// Новый id яйца: первые 16 символов UUID без дефисов, ~2^64 вариантов
func (c *Codec) NewEggID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}

// Кодирование пары (отправитель, яйцо) в строку для транспорта.
// Если не помещается в бюджет, id укорачивается; если места нет совсем -
// деградация до id из таймстампа
func (c *Codec) Encode(sender int64, eggID string) string {
	senderStr := strconv.FormatInt(sender, 10)
	wire := senderStr + "|" + eggID
	if c.prefixLen+len(wire) <= wireBudget {
		return wire
	}

	max := wireBudget - c.prefixLen - len(senderStr) - 1
	if max > 0 {
		if max > len(eggID) {
			max = len(eggID)
		}
		short := eggID[:max]
		c.logger.Warn("wire data too long, egg id shortened",
			zap.String("egg", short),
			zap.Int("len", max),
		)
		return senderStr + "|" + short
	}

	// последние 8 цифр unix time вместо случайного id;
	// если префикс с отправителем сами не влезают в бюджет,
	// строка все равно выйдет длиннее - дальше ужимать нечего
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	short := ts[len(ts)-8:]
	c.logger.Warn("wire data still too long, degraded to timestamp egg id",
		zap.String("egg", short),
		zap.Int64("sender", sender),
	)
	return senderStr + "|" + short
}

// Декодирование строки транспорта, форматы в порядке приоритета:
// новый sender|egg_id и старый egg_id_sender.
// В старом формате id мог содержать подчеркивания и дефисы, поэтому
// sender восстанавливается как сегмент после последнего подчеркивания
func (c *Codec) Decode(wire string) (sender int64, eggID string, err error) {
	if i := strings.Index(wire, "|"); i >= 0 {
		sender, perr := strconv.ParseInt(wire[:i], 10, 64)
		if perr == nil && sender > 0 && len(wire) > i+1 {
			return sender, wire[i+1:], nil
		}
	}

	if i := strings.LastIndex(wire, "_"); i > 0 {
		sender, perr := strconv.ParseInt(wire[i+1:], 10, 64)
		if perr == nil && sender > 0 {
			return sender, wire[:i], nil
		}
	}

	return 0, "", model.ErrMalformed
}

// Payload для оплаты яйца
func (c *Codec) EncodePayment(sender int64, eggID string) string {
	return payPrefix + strconv.FormatInt(sender, 10) + "|" + eggID
}

func (c *Codec) DecodePayment(payload string) (sender int64, eggID string, err error) {
	if !strings.HasPrefix(payload, payPrefix) {
		return 0, "", model.ErrMalformed
	}
	rest := payload[len(payPrefix):]
	i := strings.Index(rest, "|")
	if i <= 0 || i == len(rest)-1 {
		return 0, "", model.ErrMalformed
	}
	sender, perr := strconv.ParseInt(rest[:i], 10, 64)
	if perr != nil || sender <= 0 {
		return 0, "", model.ErrMalformed
	}
	return sender, rest[i+1:], nil
}
