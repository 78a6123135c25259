package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/astana-data/hotspot.report/internal/hotspot"
)

// ErrNoRuns is returned when the database holds no completed runs yet.
var ErrNoRuns = errors.New("no runs recorded")

// RunMeta is the listing view of a stored run.
type RunMeta struct {
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	ClusterCount  int       `json:"cluster_count"`
	HasPrediction bool      `json:"has_prediction"`
}

// SaveRun stores a run with its reports, flattening clusters and tiles
// into queryable rows alongside the full report JSON. The whole run is
// written in one transaction.
func (db *DB) SaveRun(ctx context.Context, result *hotspot.RunResult) error {
	currentJSON, err := json.Marshal(result.Current)
	if err != nil {
		return fmt.Errorf("encode current report: %w", err)
	}
	var predictedJSON []byte
	if result.Predicted != nil {
		if predictedJSON, err = json.Marshal(result.Predicted); err != nil {
			return fmt.Errorf("encode predicted report: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, current_report, predicted_report) VALUES (?, ?, ?, ?)`,
		result.RunID, result.StartedAt, string(currentJSON), nullableString(predictedJSON))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", result.RunID, err)
	}

	if err := insertReportRows(ctx, tx, result.RunID, result.Current); err != nil {
		return err
	}
	if result.Predicted != nil {
		if err := insertReportRows(ctx, tx, result.RunID, *result.Predicted); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", result.RunID, err)
	}
	return nil
}

func insertReportRows(ctx context.Context, tx *sql.Tx, runID string, report hotspot.Report) error {
	for i, c := range report.Clusters {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO clusters (run_id, kind, ordinal, center_lat, center_lon, intensity,
			        heat_level, member_count, refinement_factor, organization_count, event_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, string(report.Kind), i, c.CenterLat, c.CenterLon, c.Intensity,
			c.HeatLevel, c.MemberCount, c.RefinementFactor, c.OrganizationCount, len(c.Events))
		if err != nil {
			return fmt.Errorf("insert %s cluster %d: %w", report.Kind, i, err)
		}
	}
	for _, t := range report.Tiles {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tiles (run_id, kind, tile_id, grid_x, grid_y,
			        lat_min, lat_max, lon_min, lon_max, center_lat, center_lon,
			        heat_level, normalized_heat)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, string(report.Kind), t.TileID, t.GridX, t.GridY,
			t.LatMin, t.LatMax, t.LonMin, t.LonMax, t.CenterLat, t.CenterLon,
			t.HeatLevel, t.NormalizedHeat)
		if err != nil {
			return fmt.Errorf("insert %s tile %s: %w", report.Kind, t.TileID, err)
		}
	}
	return nil
}

// LatestRun returns the most recently started run with its reports
// decoded. Returns ErrNoRuns on an empty database.
func (db *DB) LatestRun(ctx context.Context) (*hotspot.RunResult, error) {
	row := db.QueryRowContext(ctx,
		`SELECT run_id, started_at, current_report, predicted_report
		 FROM runs ORDER BY started_at DESC, created_at DESC LIMIT 1`)
	return scanRun(row)
}

// GetRun returns one run by ID. Returns ErrNoRuns when absent.
func (db *DB) GetRun(ctx context.Context, runID string) (*hotspot.RunResult, error) {
	row := db.QueryRowContext(ctx,
		`SELECT run_id, started_at, current_report, predicted_report FROM runs WHERE run_id = ?`, runID)
	return scanRun(row)
}

func scanRun(row *sql.Row) (*hotspot.RunResult, error) {
	var result hotspot.RunResult
	var currentJSON string
	var predictedJSON sql.NullString
	err := row.Scan(&result.RunID, &result.StartedAt, &currentJSON, &predictedJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if err := json.Unmarshal([]byte(currentJSON), &result.Current); err != nil {
		return nil, fmt.Errorf("decode current report for run %s: %w", result.RunID, err)
	}
	if predictedJSON.Valid {
		var predicted hotspot.Report
		if err := json.Unmarshal([]byte(predictedJSON.String), &predicted); err != nil {
			return nil, fmt.Errorf("decode predicted report for run %s: %w", result.RunID, err)
		}
		result.Predicted = &predicted
	}
	return &result, nil
}

// RecentRuns lists up to limit runs, newest first.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]RunMeta, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT r.run_id, r.started_at, r.predicted_report IS NOT NULL,
		        (SELECT COUNT(*) FROM clusters c WHERE c.run_id = r.run_id AND c.kind = 'current')
		 FROM runs r ORDER BY r.started_at DESC, r.created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var metas []RunMeta
	for rows.Next() {
		var m RunMeta
		if err := rows.Scan(&m.RunID, &m.StartedAt, &m.HasPrediction, &m.ClusterCount); err != nil {
			return nil, fmt.Errorf("scan run meta: %w", err)
		}
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// PruneRuns deletes runs started before cutoff and their report rows.
// Returns the number of runs removed.
func (db *DB) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"clusters", "tiles"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE run_id IN (SELECT run_id FROM runs WHERE started_at < ?)`, table),
			cutoff); err != nil {
			return 0, fmt.Errorf("prune %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

func nullableString(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}
