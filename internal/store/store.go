// Package store handles SQLite persistence of gesture traces.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/cardstack/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

var (
	ErrTraceNotFound  = errors.New("trace not found")
	ErrAmbiguousTrace = errors.New("trace id prefix is ambiguous")
)

// Store wraps SQLite access for trace data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS traces (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			deck TEXT NOT NULL,
			seed INTEGER NOT NULL,
			cell_width REAL NOT NULL,
			cell_height REAL NOT NULL,
			throws INTEGER NOT NULL,
			snapbacks INTEGER NOT NULL,
			jumps INTEGER NOT NULL,
			drag_rotation REAL,
			throw_speed REAL,
			projection_ms REAL,
			rotation_kick REAL,
			throw_duration_ms INTEGER,
			throw_scale REAL,
			rest_jitter REAL
		);`,
		`CREATE TABLE IF NOT EXISTS trace_events (
			trace_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			card_id INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			vx REAL NOT NULL,
			vy REAL NOT NULL,
			at_ms REAL NOT NULL,
			PRIMARY KEY (trace_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_traces_ended_at ON traces(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_trace_events_kind ON trace_events(kind);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return s.addPhysicsColumns()
}

// physicsColumns were added after the first schema. Rows written before
// them read back as NULL.
var physicsColumns = []struct{ name, typ string }{
	{"drag_rotation", "REAL"},
	{"throw_speed", "REAL"},
	{"projection_ms", "REAL"},
	{"rotation_kick", "REAL"},
	{"throw_duration_ms", "INTEGER"},
	{"throw_scale", "REAL"},
	{"rest_jitter", "REAL"},
}

func (s *Store) addPhysicsColumns() error {
	rows, err := s.db.Query(`SELECT name FROM pragma_table_info('traces')`)
	if err != nil {
		return err
	}
	existing := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return err
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	if err := rows.Close(); err != nil {
		return err
	}
	for _, col := range physicsColumns {
		if existing[col.name] {
			continue
		}
		if _, err := s.db.Exec(fmt.Sprintf(`ALTER TABLE traces ADD COLUMN %s %s`, col.name, col.typ)); err != nil {
			return fmt.Errorf("failed to add column %s: %w", col.name, err)
		}
	}
	return nil
}

// InsertTrace stores a trace and its events. A trace without an id gets a
// fresh UUID. The stored id is returned.
func (s *Store) InsertTrace(ctx context.Context, trace model.Trace, events []model.TraceEvent) (id string, err error) {
	if trace.ID == "" {
		trace.ID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO traces (id, started_at, ended_at, deck, seed, cell_width, cell_height, throws, snapbacks, jumps,
			drag_rotation, throw_speed, projection_ms, rotation_kick, throw_duration_ms, throw_scale, rest_jitter)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trace.ID,
		trace.StartedAt.UTC().Format(timeLayout),
		trace.EndedAt.UTC().Format(timeLayout),
		strings.Join(trace.Deck, "\n"),
		trace.Seed,
		trace.CellWidth,
		trace.CellHeight,
		trace.Throws,
		trace.SnapBacks,
		trace.Jumps,
		trace.Physics.DragRotation,
		trace.Physics.ThrowSpeed,
		trace.Physics.ProjectionMs,
		trace.Physics.RotationKick,
		trace.Physics.ThrowDurationMs,
		trace.Physics.ThrowScale,
		trace.Physics.RestJitter,
	)
	if err != nil {
		return "", err
	}

	if len(events) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO trace_events (trace_id, seq, kind, card_id, x, y, vx, vy, at_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return "", err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, ev := range events {
			if _, err = stmt.ExecContext(ctx, trace.ID, ev.Seq, ev.Kind, ev.CardID, ev.X, ev.Y, ev.VX, ev.VY, ev.AtMs); err != nil {
				return "", err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return trace.ID, nil
}

// timeLayout is fixed width so stored timestamps sort chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const traceColumns = `id, started_at, ended_at, deck, seed, cell_width, cell_height, throws, snapbacks, jumps,
	drag_rotation, throw_speed, projection_ms, rotation_kick, throw_duration_ms, throw_scale, rest_jitter`

// ListTraces returns traces ordered oldest first.
func (s *Store) ListTraces(ctx context.Context, filter model.TraceFilter) ([]model.Trace, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	query := fmt.Sprintf(`SELECT %s FROM traces WHERE %s ORDER BY ended_at ASC`,
		traceColumns, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var traces []model.Trace
	for rows.Next() {
		tr, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		traces = append(traces, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if filter.Last > 0 && len(traces) > filter.Last {
		traces = traces[len(traces)-filter.Last:]
	}
	return traces, nil
}

// GetTrace returns the trace whose id equals or uniquely starts with idOrPrefix.
func (s *Store) GetTrace(ctx context.Context, idOrPrefix string) (model.Trace, error) {
	if idOrPrefix == "" {
		return model.Trace{}, ErrTraceNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM traces WHERE id = ? OR id LIKE ? ORDER BY id LIMIT 2`, traceColumns),
		idOrPrefix, stripLikeWildcards(idOrPrefix)+"%")
	if err != nil {
		return model.Trace{}, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	var found []model.Trace
	for rows.Next() {
		tr, err := scanTrace(rows)
		if err != nil {
			return model.Trace{}, err
		}
		if tr.ID == idOrPrefix {
			return tr, nil
		}
		found = append(found, tr)
	}
	if err := rows.Err(); err != nil {
		return model.Trace{}, err
	}
	switch len(found) {
	case 0:
		return model.Trace{}, fmt.Errorf("%w: %s", ErrTraceNotFound, idOrPrefix)
	case 1:
		return found[0], nil
	default:
		return model.Trace{}, fmt.Errorf("%w: %s", ErrAmbiguousTrace, idOrPrefix)
	}
}

// LoadEvents returns the events of a trace in sequence order.
func (s *Store) LoadEvents(ctx context.Context, traceID string) ([]model.TraceEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, kind, card_id, x, y, vx, vy, at_ms FROM trace_events
		 WHERE trace_id = ? ORDER BY seq ASC`, traceID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var events []model.TraceEvent
	for rows.Next() {
		var ev model.TraceEvent
		if err := rows.Scan(&ev.Seq, &ev.Kind, &ev.CardID, &ev.X, &ev.Y, &ev.VX, &ev.VY, &ev.AtMs); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// ListReleases returns every recorded pointer release for the given traces,
// with its speed and whether it became a throw.
func (s *Store) ListReleases(ctx context.Context, traceIDs []string) ([]model.Release, error) {
	if len(traceIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(traceIDs))
	args := make([]any, len(traceIDs))
	for i, id := range traceIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT trace_id, kind, vx, vy FROM trace_events
		WHERE trace_id IN (%s) AND kind IN ('up', 'throw', 'snapback')
		ORDER BY trace_id, seq`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var releases []model.Release
	open := -1
	for rows.Next() {
		var traceID, kind string
		var vx, vy float64
		if err := rows.Scan(&traceID, &kind, &vx, &vy); err != nil {
			return nil, err
		}
		switch kind {
		case "up":
			releases = append(releases, model.Release{TraceID: traceID, Speed: math.Hypot(vx, vy)})
			open = len(releases) - 1
		case "throw":
			if open >= 0 && releases[open].TraceID == traceID {
				releases[open].Thrown = true
			}
			open = -1
		default:
			open = -1
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return releases, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrace(row scanner) (model.Trace, error) {
	var tr model.Trace
	var startedAt, endedAt, deck string
	var dragRotation, throwSpeed, projection, rotationKick, throwScale, restJitter sql.NullFloat64
	var throwDuration sql.NullInt64
	if err := row.Scan(&tr.ID, &startedAt, &endedAt, &deck, &tr.Seed, &tr.CellWidth, &tr.CellHeight,
		&tr.Throws, &tr.SnapBacks, &tr.Jumps,
		&dragRotation, &throwSpeed, &projection, &rotationKick, &throwDuration, &throwScale, &restJitter); err != nil {
		return model.Trace{}, err
	}
	tr.Physics = model.Physics{
		DragRotation:    dragRotation.Float64,
		ThrowSpeed:      throwSpeed.Float64,
		ProjectionMs:    projection.Float64,
		RotationKick:    rotationKick.Float64,
		ThrowDurationMs: int(throwDuration.Int64),
		ThrowScale:      throwScale.Float64,
		RestJitter:      restJitter.Float64,
	}
	var err error
	if tr.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return model.Trace{}, err
	}
	if tr.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
		return model.Trace{}, err
	}
	if deck != "" {
		tr.Deck = strings.Split(deck, "\n")
	}
	return tr, nil
}

func stripLikeWildcards(s string) string {
	r := strings.NewReplacer(`%`, ``, `_`, ``)
	return r.Replace(s)
}
