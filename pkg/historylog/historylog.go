// Package historylog implements the append-only audit trail of spec.md
// §4.4: every ADD/UPDATE/DELETE applied to a memory is recorded here,
// synchronously and best-effort — a history write failure never rolls back
// the VectorStore mutation it describes. Grounded on the teacher's SQLite
// setup in pkg/core/store_init.go (WAL pragma, connection pool sizing).
package historylog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mnemoforge/mnemo/internal/errs"
	"github.com/mnemoforge/mnemo/internal/logging"
	"github.com/mnemoforge/mnemo/pkg/memtypes"
)

// Log is a SQLite-backed append-only history of memory mutations.
type Log struct {
	db  *sql.DB
	log logging.Logger
}

// Open opens (creating if absent) the history database at path.
func Open(ctx context.Context, path string, log logging.Logger) (*Log, error) {
	if log == nil {
		log = logging.Nop()
	}
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Wrap("open", errs.ErrStoreIO, err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(2 * time.Hour)

	l := &Log{db: db, log: log}
	if err := l.createTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) createTable(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS history (
		event_id TEXT PRIMARY KEY,
		memory_id TEXT NOT NULL,
		prev_text TEXT,
		new_text TEXT,
		op TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME,
		is_deleted INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_history_memory_id ON history(memory_id);
	CREATE INDEX IF NOT EXISTS idx_history_created_at ON history(created_at);
	`
	if _, err := l.db.ExecContext(ctx, ddl); err != nil {
		return errs.Wrap("open", errs.ErrStoreIO, err)
	}
	return nil
}

// Record appends one history event. Callers (the Reconciler, MemoryEngine)
// treat a failure here as logged, not fatal: the mutation it describes has
// already been committed to the VectorStore.
func (l *Log) Record(ctx context.Context, ev memtypes.HistoryEvent) error {
	const q = `
	INSERT INTO history (event_id, memory_id, prev_text, new_text, op, created_at, updated_at, is_deleted)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	isDeleted := 0
	if ev.IsDeleted {
		isDeleted = 1
	}
	_, err := l.db.ExecContext(ctx, q,
		ev.EventID, ev.MemoryID, ev.PrevText, ev.NewText, string(ev.Op),
		ev.CreatedAt, ev.UpdatedAt, isDeleted,
	)
	if err != nil {
		l.log.Warn("historylog: record failed", "memory_id", ev.MemoryID, "op", ev.Op, "error", err)
		return errs.Wrap("record", errs.ErrStoreIO, err)
	}
	return nil
}

// ForMemory returns every recorded event for one memory id, oldest first.
func (l *Log) ForMemory(ctx context.Context, memoryID string) ([]memtypes.HistoryEvent, error) {
	const q = `
	SELECT event_id, memory_id, prev_text, new_text, op, created_at, updated_at, is_deleted
	FROM history WHERE memory_id = ? ORDER BY created_at ASC
	`
	rows, err := l.db.QueryContext(ctx, q, memoryID)
	if err != nil {
		return nil, errs.Wrap("for_memory", errs.ErrStoreIO, err)
	}
	defer rows.Close()

	var out []memtypes.HistoryEvent
	for rows.Next() {
		var ev memtypes.HistoryEvent
		var op string
		var isDeleted int
		if err := rows.Scan(&ev.EventID, &ev.MemoryID, &ev.PrevText, &ev.NewText, &op, &ev.CreatedAt, &ev.UpdatedAt, &isDeleted); err != nil {
			return nil, errs.Wrap("for_memory", errs.ErrStoreIO, err)
		}
		ev.Op = memtypes.HistoryOp(op)
		ev.IsDeleted = isDeleted != 0
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap("for_memory", errs.ErrStoreIO, err)
	}
	return out, nil
}

// Reset deletes every recorded event. MemoryEngine.Reset does not call it:
// the history is retained across an engine reset.
func (l *Log) Reset(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, "DELETE FROM history"); err != nil {
		return errs.Wrap("reset", errs.ErrStoreIO, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}
