package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rlduels/duelsrv/internal/model"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS trajectories (
	trajectory_id TEXT PRIMARY KEY,
	media_file    TEXT NOT NULL,
	rewards       BLOB NOT NULL,
	sample_rate   REAL NOT NULL,
	duration      REAL NOT NULL,
	trim_start    REAL NOT NULL,
	trim_end      REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS pairs (
	pair_id   TEXT PRIMARY KEY,
	left_id   TEXT NOT NULL,
	right_id  TEXT NOT NULL,
	position  INTEGER NOT NULL,
	status    TEXT NOT NULL DEFAULT 'pending',
	FOREIGN KEY (left_id) REFERENCES trajectories(trajectory_id),
	FOREIGN KEY (right_id) REFERENCES trajectories(trajectory_id)
);

CREATE INDEX IF NOT EXISTS idx_pairs_position ON pairs(position);

CREATE TABLE IF NOT EXISTS judgments (
	pair_id     TEXT PRIMARY KEY,
	outcome     TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	left_start  REAL NOT NULL,
	left_end    REAL NOT NULL,
	right_start REAL NOT NULL,
	right_end   REAL NOT NULL,
	FOREIGN KEY (pair_id) REFERENCES pairs(pair_id)
);
`
// #endregion schema

// #region store-struct
// Store persists trajectories, the pair queue, and committed judgments
// in SQLite. Judgments are append-only: the pair_id primary key enforces
// at most one row per pair.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close-flush
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Flush checkpoints the WAL so every committed judgment is in the main
// database file. Called while the session drains toward TERMINATED.
func (s *Store) Flush(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}
// #endregion close-flush

// #region trajectories
// AddTrajectory inserts a trajectory record with its full reward sequence.
func (s *Store) AddTrajectory(ctx context.Context, rec model.TrajectoryRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trajectories
		 (trajectory_id, media_file, rewards, sample_rate, duration, trim_start, trim_end)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.MediaFile, encodeRewards(rec.Rewards),
		rec.SampleRate, rec.Duration, rec.Trim.Start, rec.Trim.End,
	)
	if err != nil {
		return fmt.Errorf("insert trajectory: %w", err)
	}
	return nil
}

// ListTrajectories returns every stored trajectory record.
func (s *Store) ListTrajectories(ctx context.Context) ([]model.TrajectoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trajectory_id, media_file, rewards, sample_rate, duration, trim_start, trim_end
		 FROM trajectories`)
	if err != nil {
		return nil, fmt.Errorf("list trajectories: %w", err)
	}
	defer rows.Close()

	var records []model.TrajectoryRecord
	for rows.Next() {
		var rec model.TrajectoryRecord
		var id string
		var blob []byte
		if err := rows.Scan(&id, &rec.MediaFile, &blob, &rec.SampleRate,
			&rec.Duration, &rec.Trim.Start, &rec.Trim.End); err != nil {
			return nil, fmt.Errorf("scan trajectory: %w", err)
		}
		rec.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse trajectory id %s: %w", id, err)
		}
		rec.Rewards = decodeRewards(blob)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateTrimBounds writes a trajectory's active window.
func (s *Store) UpdateTrimBounds(ctx context.Context, id uuid.UUID, b model.Bounds) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE trajectories SET trim_start = ?, trim_end = ? WHERE trajectory_id = ?`,
		b.Start, b.End, id.String(),
	)
	if err != nil {
		return fmt.Errorf("update trim bounds: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("trajectory %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// UpdateTrimBoundsPair writes both sides' windows in one transaction, so
// a pair edit never lands half-applied.
func (s *Store) UpdateTrimBoundsPair(ctx context.Context, leftID uuid.UUID, left model.Bounds, rightID uuid.UUID, right model.Bounds) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, side := range []struct {
		id uuid.UUID
		b  model.Bounds
	}{{leftID, left}, {rightID, right}} {
		res, err := tx.ExecContext(ctx,
			`UPDATE trajectories SET trim_start = ?, trim_end = ? WHERE trajectory_id = ?`,
			side.b.Start, side.b.End, side.id.String(),
		)
		if err != nil {
			return fmt.Errorf("update trim bounds: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("trajectory %s: %w", side.id, model.ErrNotFound)
		}
	}
	return tx.Commit()
}
// #endregion trajectories

// #region pairs
// AddPair inserts a pair at the given queue position.
func (s *Store) AddPair(ctx context.Context, p *model.TrajectoryPair, position int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pairs (pair_id, left_id, right_id, position, status)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID.String(), p.Left.String(), p.Right.String(), position, string(p.CurrentStatus()),
	)
	if err != nil {
		return fmt.Errorf("insert pair: %w", err)
	}
	return nil
}

// ListPairs returns the pair queue in presentation order.
func (s *Store) ListPairs(ctx context.Context) ([]*model.TrajectoryPair, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pair_id, left_id, right_id, status FROM pairs ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}
	defer rows.Close()

	var pairs []*model.TrajectoryPair
	for rows.Next() {
		var pairID, leftID, rightID, status string
		if err := rows.Scan(&pairID, &leftID, &rightID, &status); err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		pid, err := uuid.Parse(pairID)
		if err != nil {
			return nil, fmt.Errorf("parse pair id %s: %w", pairID, err)
		}
		lid, err := uuid.Parse(leftID)
		if err != nil {
			return nil, fmt.Errorf("parse left id %s: %w", leftID, err)
		}
		rid, err := uuid.Parse(rightID)
		if err != nil {
			return nil, fmt.Errorf("parse right id %s: %w", rightID, err)
		}
		pairs = append(pairs, model.NewPair(pid, lid, rid, model.PairStatus(status)))
	}
	return pairs, rows.Err()
}

// UpdatePairStatus writes a pair's judgment lifecycle status.
func (s *Store) UpdatePairStatus(ctx context.Context, id uuid.UUID, status model.PairStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pairs SET status = ? WHERE pair_id = ?`, string(status), id.String())
	if err != nil {
		return fmt.Errorf("update pair status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("pair %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// RequeuePair resets a pair to pending and moves it to the back of the
// persisted queue, mirroring an in-memory requeue after a skip so the
// order survives restart.
func (s *Store) RequeuePair(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pairs
		 SET status = ?, position = (SELECT MAX(position) + 1 FROM pairs)
		 WHERE pair_id = ?`,
		string(model.PairPending), id.String(),
	)
	if err != nil {
		return fmt.Errorf("requeue pair: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("pair %s: %w", id, model.ErrNotFound)
	}
	return nil
}
// #endregion pairs

// #region judgments
// CommitJudgment stores a judgment and marks its pair judged in one
// transaction. Either the full row lands durably or nothing does.
func (s *Store) CommitJudgment(ctx context.Context, j model.Judgment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO judgments
		 (pair_id, outcome, created_at, left_start, left_end, right_start, right_end)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.PairID.String(), string(j.Outcome), j.CreatedAt.Format(time.RFC3339Nano),
		j.Trims.Left.Start, j.Trims.Left.End, j.Trims.Right.Start, j.Trims.Right.End,
	)
	if err != nil {
		return fmt.Errorf("insert judgment: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE pairs SET status = ? WHERE pair_id = ?`,
		string(model.PairJudged), j.PairID.String(),
	)
	if err != nil {
		return fmt.Errorf("mark pair judged: %w", err)
	}

	return tx.Commit()
}

// GetJudgment retrieves the committed judgment for a pair, if any.
func (s *Store) GetJudgment(ctx context.Context, pairID uuid.UUID) (model.Judgment, error) {
	var j model.Judgment
	var id, outcome, createdStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT pair_id, outcome, created_at, left_start, left_end, right_start, right_end
		 FROM judgments WHERE pair_id = ?`, pairID.String(),
	).Scan(&id, &outcome, &createdStr,
		&j.Trims.Left.Start, &j.Trims.Left.End, &j.Trims.Right.Start, &j.Trims.Right.End)
	if err == sql.ErrNoRows {
		return model.Judgment{}, fmt.Errorf("judgment for pair %s: %w", pairID, model.ErrNotFound)
	}
	if err != nil {
		return model.Judgment{}, fmt.Errorf("get judgment: %w", err)
	}
	j.PairID, err = uuid.Parse(id)
	if err != nil {
		return model.Judgment{}, fmt.Errorf("parse pair id %s: %w", id, err)
	}
	j.Outcome = model.Outcome(outcome)
	j.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr)
	if err != nil {
		return model.Judgment{}, fmt.Errorf("parse created_at %q: %w", createdStr, err)
	}
	return j, nil
}

// ListJudgments returns every committed judgment, oldest first.
func (s *Store) ListJudgments(ctx context.Context) ([]model.Judgment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pair_id, outcome, created_at, left_start, left_end, right_start, right_end
		 FROM judgments ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list judgments: %w", err)
	}
	defer rows.Close()

	var judgments []model.Judgment
	for rows.Next() {
		var j model.Judgment
		var id, outcome, createdStr string
		if err := rows.Scan(&id, &outcome, &createdStr,
			&j.Trims.Left.Start, &j.Trims.Left.End,
			&j.Trims.Right.Start, &j.Trims.Right.End); err != nil {
			return nil, fmt.Errorf("scan judgment: %w", err)
		}
		j.PairID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse pair id %s: %w", id, err)
		}
		j.Outcome = model.Outcome(outcome)
		j.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdStr, err)
		}
		judgments = append(judgments, j)
	}
	return judgments, rows.Err()
}
// #endregion judgments

// #region reward-encoding
func encodeRewards(rewards []float64) []byte {
	buf := make([]byte, len(rewards)*8)
	for i, r := range rewards {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(r))
	}
	return buf
}

func decodeRewards(b []byte) []float64 {
	rewards := make([]float64, len(b)/8)
	for i := range rewards {
		rewards[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return rewards
}
// #endregion reward-encoding
