package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lockpilot/internal/timer"
	logx "lockpilot/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) SaveTimers(ctx context.Context, timers []timer.Timer) (err error) {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM timers`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO timers(id, action, target_ns, recurrence, pre_warning, message, created_ns)
		 VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range timers {
		var rec, warn any
		if t.Recurrence != nil {
			b, mErr := json.Marshal(t.Recurrence)
			if mErr != nil {
				return mErr
			}
			rec = string(b)
		}
		if len(t.PreWarningMinutes) > 0 {
			b, mErr := json.Marshal(t.PreWarningMinutes)
			if mErr != nil {
				return mErr
			}
			warn = string(b)
		}
		if _, err = stmt.ExecContext(ctx,
			t.ID, string(t.Action), t.TargetTime.UnixNano(), rec, warn, nullStr(t.Message), t.CreatedAt.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert timer %s: %w", t.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	s.log.Trace("timers saved", logx.Int("count", len(timers)))
	return nil
}

func (s *sqliteStore) LoadTimers(ctx context.Context) ([]timer.Timer, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, target_ns, recurrence, pre_warning, message, created_ns
		 FROM timers ORDER BY target_ns, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []timer.Timer{}
	for rows.Next() {
		var (
			id, action         string
			targetNS, createNS int64
			rec, warn, msg     sql.NullString
		)
		if err := rows.Scan(&id, &action, &targetNS, &rec, &warn, &msg, &createNS); err != nil {
			return nil, err
		}
		act, err := timer.ParseAction(action)
		if err != nil {
			return nil, fmt.Errorf("timer %s: %w", id, err)
		}
		t := timer.Timer{
			ID:         id,
			Action:     act,
			TargetTime: time.Unix(0, targetNS).UTC(),
			Message:    msg.String,
			CreatedAt:  time.Unix(0, createNS).UTC(),
		}
		if rec.Valid && rec.String != "" {
			t.Recurrence = &timer.Recurrence{}
			if err := json.Unmarshal([]byte(rec.String), t.Recurrence); err != nil {
				return nil, fmt.Errorf("timer %s recurrence: %w", id, err)
			}
		}
		if warn.Valid && warn.String != "" {
			if err := json.Unmarshal([]byte(warn.String), &t.PreWarningMinutes); err != nil {
				return nil, fmt.Errorf("timer %s warnings: %w", id, err)
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
