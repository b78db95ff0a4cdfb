package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // driver

	"github.com/opcat-tools/catwatch/internal/logging"
)

type sqliteEngine struct {
	db *sql.DB
}

func openSQLite(path string) (*sqliteEngine, error) {
	err := os.MkdirAll(path, 0750)
	if err != nil {
		return nil, err
	}

	// DSN with PRAGMAs: WAL, FULL sync, 5s busy timeout. FULL because a
	// put has to be on disk when it returns.
	dsn := "file:" + filepath.Join(path, "index.db") +
		"?_txlock=immediate" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(FULL)" +
		"&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite shines with a small pool, one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, err
	}
	return &sqliteEngine{db: db}, nil
}

const schemaSQL = `
-- One row per store key: the checkpoint plus one entry per block height
CREATE TABLE IF NOT EXISTS kv (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
) STRICT, WITHOUT ROWID;
`

func (e *sqliteEngine) get(key []byte) ([]byte, error) {
	var value []byte
	err := e.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, string(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NoEntryErr{}
	}
	if err != nil {
		logging.L.Err(err).Hex("key", key).Msg("error getting entry")
		return nil, err
	}
	return value, nil
}

func (e *sqliteEngine) put(key, value []byte) error {
	_, err := e.db.Exec(`
INSERT INTO kv (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		string(key), value)
	if err != nil {
		logging.L.Err(err).Hex("key", key).Msg("error inserting entry")
		return err
	}
	return nil
}

func (e *sqliteEngine) keys() ([][]byte, error) {
	rows, err := e.db.Query(`SELECT key FROM kv`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys [][]byte
	for rows.Next() {
		var key string
		err = rows.Scan(&key)
		if err != nil {
			return nil, err
		}
		keys = append(keys, []byte(key))
	}
	return keys, rows.Err()
}

func (e *sqliteEngine) close() error {
	return e.db.Close()
}
