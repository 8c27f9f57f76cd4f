package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/agenthands/texty/internal/core/model"
	"github.com/agenthands/texty/internal/store/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// SQLiteStore keeps nodes in a time_nodes table and the active pointers in
// active_nodes. Every operation runs on one connection taken from a bounded
// pool.
type SQLiteStore struct {
	db   *sql.DB
	pool *Pool[*sql.Conn]
	now  func() time.Time
}

type SQLiteOption func(*SQLiteStore)

// WithClock overrides the clock used for created_at and last_updated.
func WithClock(now func() time.Time) SQLiteOption {
	return func(s *SQLiteStore) { s.now = now }
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens (creating if needed) the database at path, applies the
// embedded migrations and bounds it to maxConns connections.
func OpenSQLite(ctx context.Context, path string, maxConns int, opts ...SQLiteOption) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if maxConns < 1 {
		maxConns = 1
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS, ""); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.pool = NewPool(maxConns, func(ctx context.Context) (*sql.Conn, error) {
		return db.Conn(ctx)
	})
	log.Printf("sqlite store opened path=%s max_connections=%d", path, maxConns)
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return errors.Join(s.pool.Close(), s.db.Close())
}

// withConn runs fn on a pooled connection. Connections reported bad by the
// driver are discarded rather than returned.
func (s *SQLiteStore) withConn(ctx context.Context, fn func(*sql.Conn) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	err = fn(conn)
	if errors.Is(err, driver.ErrBadConn) {
		s.pool.Discard(conn)
	} else {
		s.pool.Release(conn)
	}
	return err
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

const upsertActiveNodeSQL = `INSERT INTO active_nodes (scenario_id, node_id, last_updated)
VALUES (?, ?, ?)
ON CONFLICT (scenario_id) DO UPDATE SET node_id = excluded.node_id, last_updated = excluded.last_updated`

func (s *SQLiteStore) InsertTimeNode(ctx context.Context, node model.TimeNode) error {
	if node.ID == "" {
		return fmt.Errorf("time node id is required")
	}
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal time node %s: %w", node.ID, err)
	}
	now := toMillis(s.now())

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO time_nodes (id, scenario_id, parent_id, timestep, summary, data, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			node.ID, node.ScenarioID(), node.ParentID(), node.Timestep, node.Summary, string(data), now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert time node %s: %w", node.ID, ErrDuplicateNode)
			}
			return fmt.Errorf("insert time node %s: %w", node.ID, err)
		}
		if _, err := tx.ExecContext(ctx, upsertActiveNodeSQL, node.ScenarioID(), node.ID, now); err != nil {
			return fmt.Errorf("move active node of %s: %w", node.ScenarioID(), err)
		}
		return nil
	})
}

func (s *SQLiteStore) GetActiveNode(ctx context.Context, scenarioID string) (model.TimeNode, error) {
	return s.getNode(ctx,
		`SELECT n.data FROM active_nodes a JOIN time_nodes n ON n.id = a.node_id WHERE a.scenario_id = ?`,
		scenarioID)
}

func (s *SQLiteStore) GetNode(ctx context.Context, id string) (model.TimeNode, error) {
	return s.getNode(ctx, `SELECT data FROM time_nodes WHERE id = ?`, id)
}

func (s *SQLiteStore) getNode(ctx context.Context, query, arg string) (model.TimeNode, error) {
	var node model.TimeNode
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		var data string
		if err := conn.QueryRowContext(ctx, query, arg).Scan(&data); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("get time node %s: %w", arg, err)
		}
		return decodeNode(data, &node)
	})
	return node, err
}

func (s *SQLiteStore) SetActiveNode(ctx context.Context, scenarioID, nodeID string) error {
	now := toMillis(s.now())
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var owner string
		err := tx.QueryRowContext(ctx, `SELECT scenario_id FROM time_nodes WHERE id = ?`, nodeID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("node %s: %w", nodeID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("look up node %s: %w", nodeID, err)
		}
		if owner != scenarioID {
			return fmt.Errorf("node %s in scenario %s: %w", nodeID, scenarioID, ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, upsertActiveNodeSQL, scenarioID, nodeID, now); err != nil {
			return fmt.Errorf("set active node of %s: %w", scenarioID, err)
		}
		return nil
	})
}

func (s *SQLiteStore) ListAllTimeNodes(ctx context.Context, scenarioID string) ([]model.TimeNode, error) {
	var nodes []model.TimeNode
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT data FROM time_nodes WHERE scenario_id = ? ORDER BY timestep, created_at, rowid`,
			scenarioID)
		if err != nil {
			return fmt.Errorf("list time nodes: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var data string
			if err := rows.Scan(&data); err != nil {
				return fmt.Errorf("scan time node: %w", err)
			}
			var node model.TimeNode
			if err := decodeNode(data, &node); err != nil {
				return err
			}
			nodes = append(nodes, node)
		}
		return rows.Err()
	})
	return nodes, err
}

func (s *SQLiteStore) ListGames(ctx context.Context) ([]ActiveGame, error) {
	var games []ActiveGame
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT a.scenario_id, a.last_updated, n.data
			 FROM active_nodes a JOIN time_nodes n ON n.id = a.node_id
			 ORDER BY a.last_updated DESC, a.scenario_id`)
		if err != nil {
			return fmt.Errorf("list games: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				game    ActiveGame
				updated int64
				data    string
			)
			if err := rows.Scan(&game.ScenarioID, &updated, &data); err != nil {
				return fmt.Errorf("scan game: %w", err)
			}
			if err := decodeNode(data, &game.Node); err != nil {
				return err
			}
			game.LastUpdated = fromMillis(updated)
			games = append(games, game)
		}
		return rows.Err()
	})
	return games, err
}

// DeleteGame removes every node of a scenario together with its pointer.
func (s *SQLiteStore) DeleteGame(ctx context.Context, scenarioID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM active_nodes WHERE scenario_id = ?`, scenarioID); err != nil {
			return fmt.Errorf("delete active node: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM time_nodes WHERE scenario_id = ?`, scenarioID)
		if err != nil {
			return fmt.Errorf("delete time nodes: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("scenario %s: %w", scenarioID, ErrNotFound)
		}
		return nil
	})
}

func (s *SQLiteStore) ListChildren(ctx context.Context, nodeID string) ([]string, error) {
	var ids []string
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT id FROM time_nodes WHERE parent_id = ? ORDER BY created_at, rowid`, nodeID)
		if err != nil {
			return fmt.Errorf("list children of %s: %w", nodeID, err)
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	return ids, err
}

func decodeNode(data string, node *model.TimeNode) error {
	if err := json.Unmarshal([]byte(data), node); err != nil {
		return fmt.Errorf("decode time node: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var (
	_ Store       = (*SQLiteStore)(nil)
	_ ChildLister = (*SQLiteStore)(nil)
)
