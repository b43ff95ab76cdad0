// Package sqlitestore implements the store contract on an embedded sqlite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/partdex/partdex/internal/pkg/model"
	"github.com/partdex/partdex/internal/pkg/utils/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS hardware_records (
	id           TEXT PRIMARY KEY,
	type         TEXT NOT NULL,
	manufacturer TEXT NOT NULL DEFAULT '',
	payload      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS record_identifiers (
	record_id TEXT NOT NULL REFERENCES hardware_records (id) ON DELETE CASCADE,
	kind      TEXT NOT NULL,
	value     TEXT NOT NULL,
	PRIMARY KEY (record_id, kind, value)
);
CREATE INDEX IF NOT EXISTS idx_record_identifiers_value ON record_identifiers (value);
CREATE TABLE IF NOT EXISTS price_observations (
	natural_key TEXT PRIMARY KEY,
	domain      TEXT NOT NULL,
	item_id     TEXT NOT NULL,
	identifier  TEXT NOT NULL,
	amount      INTEGER NOT NULL,
	currency    TEXT NOT NULL,
	observed_at TIMESTAMP NOT NULL,
	condition   TEXT NOT NULL DEFAULT 'unknown'
);
CREATE INDEX IF NOT EXISTS idx_price_observations_identifier ON price_observations (identifier, currency);
CREATE TABLE IF NOT EXISTS negative_cache (
	identifier    TEXT NOT NULL,
	currency      TEXT NOT NULL,
	blocked_until TIMESTAMP NOT NULL,
	PRIMARY KEY (identifier, currency)
);
CREATE TABLE IF NOT EXISTS runtime_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.PrefixError(err, "cannot open database")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.PrefixError(err, "cannot create schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) FindByAnyIdentifier(ctx context.Context, t model.HardwareType, identifiers []string) ([]*model.HardwareRecord, error) {
	if len(identifiers) == 0 {
		return nil, nil
	}
	query := `
		SELECT DISTINCT r.payload
		FROM hardware_records r
		JOIN record_identifiers i ON i.record_id = r.id
		WHERE r.type = ? AND i.value IN (` + placeholders(len(identifiers)) + `)
		ORDER BY r.id`
	args := make([]any, 0, len(identifiers)+1)
	args = append(args, string(t))
	for _, v := range identifiers {
		args = append(args, v)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.HardwareRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		record, err := decodeRecord(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *Store) FindAllByIdentifiersIn(ctx context.Context, identifiers []string) (map[string]*model.HardwareRecord, error) {
	out := make(map[string]*model.HardwareRecord)
	if len(identifiers) == 0 {
		return out, nil
	}
	query := `
		SELECT i.value, r.payload
		FROM hardware_records r
		JOIN record_identifiers i ON i.record_id = r.id
		WHERE i.value IN (` + placeholders(len(identifiers)) + `)
		ORDER BY i.value, r.id`
	args := make([]any, 0, len(identifiers))
	for _, v := range identifiers {
		args = append(args, v)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var identifier, payload string
		if err := rows.Scan(&identifier, &payload); err != nil {
			return nil, err
		}
		if _, found := out[identifier]; found {
			continue
		}
		record, err := decodeRecord(payload)
		if err != nil {
			return nil, err
		}
		out[identifier] = record
	}
	return out, rows.Err()
}

func (s *Store) Save(ctx context.Context, record *model.HardwareRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return saveRecord(ctx, tx, record)
	})
}

func (s *Store) SaveAll(ctx context.Context, records []*model.HardwareRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, record := range records {
			if err := saveRecord(ctx, tx, record); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, record *model.HardwareRecord) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM hardware_records WHERE id = ?`, record.ID)
	return err
}

func (s *Store) DistinctManufacturers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT manufacturer FROM hardware_records
		WHERE manufacturer <> '' ORDER BY manufacturer`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) SavePriceObservations(ctx context.Context, observations []model.PriceObservation) (int, error) {
	saved := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, o := range observations {
			result, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO price_observations
				(natural_key, domain, item_id, identifier, amount, currency, observed_at, condition)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				o.NaturalKey(), o.MarketplaceDomain, o.MarketplaceItemID, o.Identifier,
				o.Amount, o.Currency, o.ObservedAt.UTC(), string(o.Condition),
			)
			if err != nil {
				return err
			}
			if n, err := result.RowsAffected(); err == nil {
				saved += int(n)
			}
		}
		return nil
	})
	return saved, err
}

func (s *Store) AveragePrice(ctx context.Context, identifiers []string, currency string, since time.Time) (int64, bool, error) {
	if len(identifiers) == 0 {
		return 0, false, nil
	}
	query := `
		SELECT COALESCE(AVG(amount), 0), COUNT(*)
		FROM price_observations
		WHERE currency = ? AND observed_at >= ? AND identifier IN (` + placeholders(len(identifiers)) + `)`
	args := []any{currency, since.UTC()}
	for _, v := range identifiers {
		args = append(args, v)
	}
	var avg float64
	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&avg, &count); err != nil {
		return 0, false, err
	}
	if count == 0 {
		return 0, false, nil
	}
	return int64(avg), true, nil
}

func (s *Store) GetNegativeEntry(ctx context.Context, identifier, currency string) (*model.NegativeCacheEntry, error) {
	entry := model.NegativeCacheEntry{Identifier: identifier, Currency: currency}
	err := s.db.QueryRowContext(ctx, `
		SELECT blocked_until FROM negative_cache
		WHERE identifier = ? AND currency = ?`, identifier, currency,
	).Scan(&entry.BlockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) PutNegativeEntry(ctx context.Context, entry model.NegativeCacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO negative_cache (identifier, currency, blocked_until) VALUES (?, ?, ?)
		ON CONFLICT (identifier, currency) DO UPDATE SET blocked_until = excluded.blocked_until`,
		entry.Identifier, entry.Currency, entry.BlockedUntil.UTC(),
	)
	return err
}

func (s *Store) DeleteExpiredNegativeEntries(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM negative_cache WHERE blocked_until <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func (s *Store) GetRuntimeValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM runtime_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) PutRuntimeValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runtime_state (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func saveRecord(ctx context.Context, tx *sql.Tx, record *model.HardwareRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO hardware_records (id, type, manufacturer, payload) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET type = excluded.type, manufacturer = excluded.manufacturer, payload = excluded.payload`,
		record.ID, string(record.Type), record.Manufacturer, string(payload),
	); err != nil {
		return err
	}

	// Rebuild the identifier index of the record
	if _, err := tx.ExecContext(ctx, `DELETE FROM record_identifiers WHERE record_id = ?`, record.ID); err != nil {
		return err
	}
	for kind, values := range map[string][]string{"ean": record.EANs.Slice(), "mpn": record.MPNs.Slice()} {
		for _, value := range values {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO record_identifiers (record_id, kind, value) VALUES (?, ?, ?)`,
				record.ID, kind, value,
			); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeRecord(payload string) (*model.HardwareRecord, error) {
	record := &model.HardwareRecord{}
	if err := json.Unmarshal([]byte(payload), record); err != nil {
		return nil, errors.PrefixError(err, "cannot decode record payload")
	}
	return record, nil
}

func placeholders(n int) string {
	out := make([]byte, 0, 2*n)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}
