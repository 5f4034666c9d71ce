package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout keeps interval columns lexically comparable.
const timeLayout = "2006-01-02T15:04:05Z"

// DB wraps sql.DB for the scheduler.
type DB struct {
	*sql.DB
	loc    *time.Location
	logger zerolog.Logger
}

// NewDB opens the database at path and creates tables if they don't exist.
// Times are returned in loc, the business timezone.
func NewDB(path string, loc *time.Location, logger zerolog.Logger) (*DB, error) {
	if loc == nil {
		loc = time.Local
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// immediate transactions take the write lock at BEGIN, so a conflict check
	// and the insert that follows it cannot interleave with another writer.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	l := logger.With().Str("component", "database").Logger()
	l.Info().Str("path", path).Msg("database initialized")

	return &DB{DB: db, loc: loc, logger: l}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS shops (
            id INTEGER PRIMARY KEY,
            owner_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            address TEXT,
            phone TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY,
            username TEXT UNIQUE NOT NULL,
            name TEXT,
            phone TEXT,
            role TEXT NOT NULL,
            works_at INTEGER,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY (works_at) REFERENCES shops(id)
        )`,

		`CREATE TABLE IF NOT EXISTS staff_schedules (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            staff_id INTEGER NOT NULL,
            day_of_week INTEGER NOT NULL,
            start_time TEXT NOT NULL,
            break_start TEXT NOT NULL,
            break_end TEXT NOT NULL,
            end_time TEXT NOT NULL,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (staff_id, day_of_week),
            FOREIGN KEY (staff_id) REFERENCES users(id)
        )`,

		`CREATE TABLE IF NOT EXISTS services (
            id INTEGER PRIMARY KEY,
            shop_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            duration_minutes INTEGER,
            buffer_minutes INTEGER NOT NULL DEFAULT 0,
            base_price_cents INTEGER NOT NULL DEFAULT 0,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            FOREIGN KEY (shop_id) REFERENCES shops(id)
        )`,

		`CREATE TABLE IF NOT EXISTS service_performers (
            service_id INTEGER NOT NULL,
            staff_id INTEGER NOT NULL,
            PRIMARY KEY (service_id, staff_id),
            FOREIGN KEY (service_id) REFERENCES services(id),
            FOREIGN KEY (staff_id) REFERENCES users(id)
        )`,

		`CREATE TABLE IF NOT EXISTS pets (
            id INTEGER PRIMARY KEY,
            tutor_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            species TEXT,
            size TEXT,
            FOREIGN KEY (tutor_id) REFERENCES users(id)
        )`,

		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            shop_id INTEGER NOT NULL,
            service_id INTEGER NOT NULL,
            staff_id INTEGER NOT NULL,
            pet_id INTEGER NOT NULL,
            tutor_id INTEGER,
            client_name TEXT,
            client_phone TEXT,
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'PENDING',
            total_price_cents INTEGER NOT NULL DEFAULT 0,
            recurrence_parent_id INTEGER,
            recurrence_frequency TEXT,
            recurrence_end_date TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY (shop_id) REFERENCES shops(id),
            FOREIGN KEY (service_id) REFERENCES services(id),
            FOREIGN KEY (staff_id) REFERENCES users(id),
            FOREIGN KEY (pet_id) REFERENCES pets(id),
            FOREIGN KEY (recurrence_parent_id) REFERENCES bookings(id)
        )`,

		`CREATE TABLE IF NOT EXISTS time_blocks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            shop_id INTEGER NOT NULL,
            staff_id INTEGER NOT NULL,
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL,
            reason TEXT,
            created_by INTEGER NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY (shop_id) REFERENCES shops(id),
            FOREIGN KEY (staff_id) REFERENCES users(id)
        )`,

		`CREATE INDEX IF NOT EXISTS idx_users_works_at ON users(works_at)`,
		`CREATE INDEX IF NOT EXISTS idx_services_shop ON services(shop_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_staff_times ON bookings(staff_id, start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_parent ON bookings(recurrence_parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_time_blocks_staff_times ON time_blocks(staff_id, start_time, end_time)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// Location returns the business timezone used for returned times.
func (db *DB) Location() *time.Location {
	return db.loc
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func (db *DB) parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t.In(db.loc), nil
}

// DayBounds returns [00:00, next 00:00) of day in the business timezone.
func (db *DB) DayBounds(day time.Time) (time.Time, time.Time) {
	y, m, d := day.In(db.loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, db.loc)
	return start, start.AddDate(0, 0, 1)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
