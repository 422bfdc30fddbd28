package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/llyrli/working-mode/internal/models"
)

const schema = `
-- Synchronized settings namespace (the Settings entity lives here verbatim)
CREATE TABLE IF NOT EXISTS sync_settings (
    k TEXT PRIMARY KEY,
    v TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

-- Local namespace: stats:<day>, segments:<day>, segments:days
CREATE TABLE IF NOT EXISTS local_store (
    k TEXT PRIMARY KEY,
    v TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`

const (
	settingsKey = "settings"
	dayIndexKey = "segments:days"

	// maxTrackedDays bounds the rolling day-key index; the oldest entries
	// are evicted first.
	maxTrackedDays = 400
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(schema)
	if err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// LoadSettings reads the Settings entity from the sync namespace. A missing
// row yields the built-in defaults; a stored value is normalized so malformed
// configuration never escapes the load step.
func (db *DB) LoadSettings() (*models.Settings, error) {
	s := models.DefaultSettings()
	found, err := db.get("sync_settings", settingsKey, s)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	if !found {
		return models.DefaultSettings(), nil
	}
	s.Normalize()
	return s, nil
}

// SaveSettings writes the Settings entity to the sync namespace.
func (db *DB) SaveSettings(s *models.Settings) error {
	return db.set("sync_settings", settingsKey, s)
}

// LoadDailyStats returns the aggregate record for a day key, lazily creating
// an empty one when the day has no data yet.
func (db *DB) LoadDailyStats(dayKey string) (*models.DailyStats, error) {
	stats := models.NewDailyStats()
	found, err := db.get("local_store", "stats:"+dayKey, stats)
	if err != nil {
		return nil, fmt.Errorf("loading stats for %s: %w", dayKey, err)
	}
	if !found {
		return models.NewDailyStats(), nil
	}
	if stats.TotalsUmbrella == nil {
		stats.TotalsUmbrella = map[string]int64{}
	}
	if stats.TotalsFine == nil {
		stats.TotalsFine = map[string]int64{}
	}
	if stats.ByDomain == nil {
		stats.ByDomain = map[string]*models.DomainStat{}
	}
	return stats, nil
}

// SaveDailyStats persists the aggregate record for a day key.
func (db *DB) SaveDailyStats(dayKey string, stats *models.DailyStats) error {
	return db.set("local_store", "stats:"+dayKey, stats)
}

// LoadSegments returns the append-only segment log for a day key.
func (db *DB) LoadSegments(dayKey string) ([]models.Segment, error) {
	var segs []models.Segment
	if _, err := db.get("local_store", "segments:"+dayKey, &segs); err != nil {
		return nil, fmt.Errorf("loading segments for %s: %w", dayKey, err)
	}
	return segs, nil
}

// AppendSegment adds one settlement record to a day's segment log. The caller
// (the ledger) serializes settlements, so read-modify-write is safe here.
func (db *DB) AppendSegment(dayKey string, seg models.Segment) error {
	segs, err := db.LoadSegments(dayKey)
	if err != nil {
		return err
	}
	segs = append(segs, seg)
	return db.set("local_store", "segments:"+dayKey, segs)
}

// LoadDayIndex returns the bounded list of day keys that have data.
func (db *DB) LoadDayIndex() ([]string, error) {
	var days []string
	if _, err := db.get("local_store", dayIndexKey, &days); err != nil {
		return nil, fmt.Errorf("loading day index: %w", err)
	}
	return days, nil
}

// RegisterDay appends a day key to the index if absent and evicts the oldest
// entries beyond the cap.
func (db *DB) RegisterDay(dayKey string) error {
	days, err := db.LoadDayIndex()
	if err != nil {
		return err
	}
	for _, d := range days {
		if d == dayKey {
			return nil
		}
	}
	days = append(days, dayKey)
	if len(days) > maxTrackedDays {
		days = days[len(days)-maxTrackedDays:]
	}
	return db.set("local_store", dayIndexKey, days)
}

// ClearStats deletes every persisted daily-statistics and segment-log record,
// including the day index, and returns the number of rows removed.
func (db *DB) ClearStats() (int, error) {
	result, err := db.conn.Exec(`
		DELETE FROM local_store
		WHERE k LIKE 'stats:%' OR k LIKE 'segments:%'
	`)
	if err != nil {
		return 0, fmt.Errorf("clearing stats: %w", err)
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

func (db *DB) get(table, key string, out interface{}) (bool, error) {
	var raw string
	err := db.conn.QueryRow(
		fmt.Sprintf(`SELECT v FROM %s WHERE k = ?`, table), key,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("parsing stored value %q: %w", key, err)
	}
	return true, nil
}

func (db *DB) set(table, key string, val interface{}) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("marshaling value %q: %w", key, err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = db.conn.Exec(fmt.Sprintf(`
		INSERT INTO %s (k, v, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(k) DO UPDATE SET v = ?, updated_at = ?
	`, table), key, string(raw), now, string(raw), now)
	return err
}
