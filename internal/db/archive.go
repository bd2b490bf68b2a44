package eggs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	model "github.com/tohatch/eggchain/internal/models"
	"go.uber.org/zap"
)

// Архив яиц для explorer: по строке на яйцо с временем выдачи и вылупления.
// Записи best-effort, источником истины остается реестр в памяти
type ArchiveDB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewArchiveDB(logger *zap.Logger) (db *ArchiveDB, err error) {
	// config
	purl := os.Getenv("EGGCHAIN_DB")
	if purl == "" {
		return nil, fmt.Errorf("env EGGCHAIN_DB is not set")
	}
	port := os.Getenv("EGGCHAIN_DB_PORT")
	if port == "" {
		return nil, fmt.Errorf("env EGGCHAIN_DB_PORT is not set")
	}
	user := os.Getenv("EGGCHAIN_DB_USER")
	if user == "" {
		return nil, fmt.Errorf("env EGGCHAIN_DB_USER is not set")
	}
	password := os.Getenv("EGGCHAIN_DB_PASSWORD")
	if password == "" {
		return nil, fmt.Errorf("env EGGCHAIN_DB_PASSWORD is not set")
	}
	database := os.Getenv("EGGCHAIN_DB_BASE")
	if database == "" {
		return nil, fmt.Errorf("env EGGCHAIN_DB_BASE is not set")
	}
	dsn := "postgres://" + user + ":" + password + "@" + purl + ":" + port + "/" + database

	pool, err := pgxpool.New(context.Background(), dsn)
	return &ArchiveDB{pool, logger}, err
}

func (a *ArchiveDB) EggSent(ctx context.Context, egg model.Egg, paid bool) error {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	sql, args, err := sq.Insert("eggs").
		Columns("egg_id", "sender_id", "paid", "sent_at", "status").
		Values(egg.ID, egg.Sender, paid, time.Now(), "pending").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		a.logger.Error("SQL error",
			zap.Error(err),
			zap.String("query", sql),
			zap.Any("args", args),
		)
		return err
	}

	_, err = conn.Exec(ctx, sql, args...)
	if err != nil {
		a.logger.Error("SQL error",
			zap.Error(err),
			zap.String("query", sql),
			zap.Any("args", args),
		)
		return err
	}
	return nil
}

func (a *ArchiveDB) EggHatched(ctx context.Context, egg model.Egg) error {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	sql, args, err := sq.Update("eggs").
		Set("hatched_by", egg.HatchedBy).
		Set("hatched_at", time.Now()).
		Set("status", "hatched").
		Where(sq.Eq{"sender_id": egg.Sender}).
		Where(sq.Eq{"egg_id": egg.ID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = conn.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	return nil
}

func (a *ArchiveDB) GetEgg(ctx context.Context, sender int64, eggID string) (rec model.EggRecord, err error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return rec, err
	}
	defer conn.Release()

	row := conn.QueryRow(ctx,
		"SELECT egg_id, sender_id, hatched_by, paid, sent_at, hatched_at, status FROM eggs WHERE sender_id = $1 AND egg_id = $2",
		sender, eggID)
	rec, err = scanEgg(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rec, fmt.Errorf("egg %w", model.ErrNotFound)
		}
		return rec, err
	}
	return rec, nil
}

func (a *ArchiveDB) GetUserEggs(ctx context.Context, sender int64) (recs []model.EggRecord, err error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	sql, args, err := sq.Select("egg_id", "sender_id", "hatched_by", "paid", "sent_at", "hatched_at", "status").
		From("eggs").
		Where(sq.Eq{"sender_id": sender}).
		OrderBy("sent_at DESC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanEgg(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func scanEgg(row pgx.Row) (rec model.EggRecord, err error) {
	var hatchedBy pgtype.Int8
	var hatchedAt pgtype.Timestamptz
	err = row.Scan(&rec.EggID, &rec.Sender, &hatchedBy, &rec.Paid, &rec.SentAt, &hatchedAt, &rec.Status)
	if err != nil {
		return rec, err
	}
	if hatchedBy.Status == pgtype.Present {
		rec.HatchedBy = hatchedBy.Int
	}
	if hatchedAt.Status == pgtype.Present {
		rec.HatchedAt = hatchedAt.Time
	}
	return rec, nil
}
