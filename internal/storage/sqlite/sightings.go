package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/birdnest/internal/report"
	"github.com/yegors/birdnest/pkg/logger"
)

// timestamps are stored as fixed-width UTC text so they sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SightingStorage archives every published report line. It is write-only from
// the monitor's point of view and is never used to restore tracking state.
type SightingStorage struct {
	db        *sql.DB
	retention time.Duration
	logger    *logger.Logger
}

// NewSightingStorage creates the archive tables on db. Rows older than retention
// are pruned on each publish; zero keeps everything.
func NewSightingStorage(db *sql.DB, retention time.Duration, logger *logger.Logger) (*SightingStorage, error) {
	storage := &SightingStorage{
		db:        db,
		retention: retention,
		logger:    logger.Named("sqlite-arch"),
	}
	if err := storage.initDB(); err != nil {
		return nil, err
	}
	return storage, nil
}

func (s *SightingStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS violation_sightings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			serial TEXT NOT NULL,
			closest_distance REAL NOT NULL,
			dist TEXT NOT NULL,
			last_seen TEXT NOT NULL,
			named INTEGER NOT NULL,
			operator_name TEXT,
			phone TEXT,
			email TEXT,
			recorded_at TEXT NOT NULL,
			UNIQUE (serial, last_seen)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create violation_sightings table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_sightings_serial ON violation_sightings(serial)`,
		`CREATE INDEX IF NOT EXISTS idx_sightings_last_seen ON violation_sightings(last_seen)`,
	}
	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create sightings index: %w", err)
		}
	}
	return nil
}

// Publish archives the report. A serial already stored with the same LastSeen
// is skipped, so unchanged violators do not add rows.
func (s *SightingStorage) Publish(ctx context.Context, rep *report.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO violation_sightings
		(serial, closest_distance, dist, last_seen, named, operator_name, phone, email, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare archive insert: %w", err)
	}
	defer stmt.Close()

	recordedAt := rep.GeneratedAt.UTC().Format(timeLayout)
	inserted := 0
	for _, e := range rep.Entries {
		res, err := stmt.ExecContext(ctx,
			e.ID,
			e.ClosestDistance,
			e.Dist,
			e.LastSeen.UTC().Format(timeLayout),
			e.Named,
			nullString(e.Name),
			nullString(e.Phone),
			nullString(e.Email),
			recordedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to archive sighting of %s: %w", e.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	pruned := int64(0)
	if s.retention > 0 {
		cutoff := rep.GeneratedAt.Add(-s.retention).UTC().Format(timeLayout)
		res, err := tx.ExecContext(ctx, `DELETE FROM violation_sightings WHERE last_seen < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune archive: %w", err)
		}
		pruned, _ = res.RowsAffected()
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive transaction: %w", err)
	}

	s.logger.Debug("Archived report",
		logger.Int("inserted", inserted),
		logger.Int64("pruned", pruned),
	)
	return nil
}

// History returns the archived sightings of one drone, newest first
func (s *SightingStorage) History(ctx context.Context, serial string, limit int) ([]*SightingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, serial, closest_distance, dist, last_seen, named, operator_name, phone, email, recorded_at
		FROM violation_sightings
		WHERE serial = ?
		ORDER BY last_seen DESC
		LIMIT ?`,
		serial, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sightings by serial: %w", err)
	}
	defer rows.Close()

	return s.scanSightingRows(rows)
}

// Count returns the number of archived rows
func (s *SightingStorage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM violation_sightings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sightings: %w", err)
	}
	return n, nil
}

func (s *SightingStorage) scanSightingRows(rows *sql.Rows) ([]*SightingRecord, error) {
	var records []*SightingRecord
	for rows.Next() {
		var record SightingRecord
		var lastSeen, recordedAt string
		var name, phone, email sql.NullString

		if err := rows.Scan(
			&record.ID,
			&record.Serial,
			&record.ClosestDistance,
			&record.Dist,
			&lastSeen,
			&record.Named,
			&name,
			&phone,
			&email,
			&recordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sighting: %w", err)
		}

		var err error
		record.LastSeen, err = time.Parse(timeLayout, lastSeen)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_seen: %w", err)
		}
		record.RecordedAt, err = time.Parse(timeLayout, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse recorded_at: %w", err)
		}

		record.OperatorName = name.String
		record.Phone = phone.String
		record.Email = email.String

		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sightings: %w", err)
	}
	return records, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
