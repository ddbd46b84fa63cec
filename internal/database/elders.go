package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carewatch/guardian/internal/model"
)

// DB is the subset of pgxpool.Pool used by the repositories.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// elderRow mirrors the elders table.
type elderRow struct {
	ID           string              `db:"id"`
	Name         string              `db:"name"`
	Age          int                 `db:"age"`
	Relationship string              `db:"relationship"`
	IsOnline     bool                `db:"is_online"`
	LastSeen     string              `db:"last_seen"`
	BatteryLevel int                 `db:"battery_level"`
	PairedAt     string              `db:"paired_at"`
	LastAlert    *model.AlertSummary `db:"last_alert"`
}

func (r elderRow) toModel() model.Elder {
	return model.Elder{
		ID:           r.ID,
		Name:         r.Name,
		Age:          r.Age,
		Relationship: r.Relationship,
		IsOnline:     r.IsOnline,
		LastSeen:     r.LastSeen,
		BatteryLevel: r.BatteryLevel,
		PairedAt:     r.PairedAt,
		LastAlert:    r.LastAlert,
	}
}

// ElderRepository stores the elder registry cache.
type ElderRepository struct {
	db DB
}

// NewElderRepository creates an ElderRepository.
func NewElderRepository(db DB) *ElderRepository {
	return &ElderRepository{db: db}
}

const selectElders = `
	SELECT id, name, age, relationship, is_online, last_seen, battery_level, paired_at, last_alert
	FROM elders
	ORDER BY position, id
`

const upsertElder = `
	INSERT INTO elders (id, name, age, relationship, is_online, last_seen, battery_level, paired_at, last_alert, position, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		age = EXCLUDED.age,
		relationship = EXCLUDED.relationship,
		is_online = EXCLUDED.is_online,
		last_seen = EXCLUDED.last_seen,
		battery_level = EXCLUDED.battery_level,
		paired_at = EXCLUDED.paired_at,
		last_alert = EXCLUDED.last_alert,
		position = EXCLUDED.position,
		updated_at = now()
`

// LoadElders returns the cached elders in registry order.
func (r *ElderRepository) LoadElders(ctx context.Context) ([]model.Elder, error) {
	rows, err := r.db.Query(ctx, selectElders)
	if err != nil {
		return nil, fmt.Errorf("query elders: %w", err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[elderRow])
	if err != nil {
		return nil, fmt.Errorf("scan elders: %w", err)
	}

	elders := make([]model.Elder, 0, len(records))
	for _, rec := range records {
		elders = append(elders, rec.toModel())
	}
	return elders, nil
}

// SaveElders replaces the cache with elders in one transaction.
func (r *ElderRepository) SaveElders(ctx context.Context, elders []model.Elder) error {
	ids := make([]string, 0, len(elders))
	for _, e := range elders {
		ids = append(ids, e.ID)
	}

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM elders WHERE NOT (id = ANY($1))`, ids); err != nil {
			return fmt.Errorf("delete unpaired elders: %w", err)
		}

		batch := &pgx.Batch{}
		for i, e := range elders {
			batch.Queue(upsertElder,
				e.ID, e.Name, e.Age, e.Relationship, e.IsOnline,
				e.LastSeen, e.BatteryLevel, e.PairedAt, e.LastAlert, i,
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert elders: %w", err)
		}
		return nil
	})
}
