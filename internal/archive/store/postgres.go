package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"entrypass/internal/archive/models"
	"entrypass/internal/archive/store/migrations"
	id "entrypass/pkg/domain"
	"entrypass/pkg/platform/sentinel"
	txcontext "entrypass/pkg/platform/tx"
)

// PostgresStore keeps each snapshot as an immutable JSONB body plus
// indexed columns for retention, and one row per manifest item.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Open connects through the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// gooseUp is swapped in tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUp(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate snapshots: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, snap *models.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return txcontext.Run(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO snapshots (id, entry_info_id, user_id, status, version, encrypted, created_at, body)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING
		`, snap.ID.String(), snap.EntryInfoID.String(), snap.UserID.String(), string(snap.Status),
			snap.Version, snap.Encryption != nil, snap.CreatedAt, body)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		if n == 0 {
			return sentinel.ErrConflict
		}
		if len(snap.PhotoManifest) == 0 {
			return nil
		}

		var (
			fundIDs  = make([]string, len(snap.PhotoManifest))
			paths    = make([]string, len(snap.PhotoManifest))
			sizes    = make([]int64, len(snap.PhotoManifest))
			statuses = make([]string, len(snap.PhotoManifest))
		)
		for i, item := range snap.PhotoManifest {
			fundIDs[i] = item.FundItemID
			paths[i] = item.SnapshotPath
			sizes[i] = item.FileSize
			statuses[i] = string(item.Status)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO snapshot_photos (snapshot_id, fund_item_id, snapshot_path, file_size, status)
			SELECT $1, * FROM unnest($2::text[], $3::text[], $4::bigint[], $5::text[])
		`, snap.ID.String(), pq.Array(fundIDs), pq.Array(paths), pq.Array(sizes), pq.Array(statuses))
		if err != nil {
			return fmt.Errorf("insert snapshot photos: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Get(ctx context.Context, snapshotID id.SnapshotID) (*models.Snapshot, error) {
	var body []byte
	err := s.execer(ctx).QueryRowContext(ctx, `SELECT body FROM snapshots WHERE id = $1`, snapshotID.String()).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Summary, error) {
	return s.list(ctx, `SELECT id, entry_info_id, status, created_at FROM snapshots ORDER BY created_at`)
}

func (s *PostgresStore) ListByEntryInfo(ctx context.Context, entryInfoID id.EntryInfoID) ([]models.Summary, error) {
	return s.list(ctx, `SELECT id, entry_info_id, status, created_at FROM snapshots WHERE entry_info_id = $1 ORDER BY created_at`,
		entryInfoID.String())
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]models.Summary, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.Summary
	for rows.Next() {
		var (
			snapID, entryID uuid.UUID
			status          string
			sum             models.Summary
		)
		if err := rows.Scan(&snapID, &entryID, &status, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		sum.ID = id.SnapshotID(snapID)
		sum.EntryInfoID = id.EntryInfoID(entryID)
		sum.Status = models.SnapshotStatus(status)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return out, nil
}

// Delete removes the record; manifest rows go with it by cascade.
func (s *PostgresStore) Delete(ctx context.Context, snapshotID id.SnapshotID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM snapshots WHERE id = $1`, snapshotID.String())
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
