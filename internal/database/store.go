package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/chaincred/chaincred/internal/errors"
	"github.com/chaincred/chaincred/internal/types"
)

// Store persists analysis reports and serves the queries behind the
// report history and skill leaderboard endpoints.
type Store struct {
	db *DB
}

// NewStore creates a new store
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// SaveReport stores a finished analysis run: the full report as JSON
// plus one flattened skill row per evaluated skill. The write is
// transactional so a run never appears without its skill rows.
func (s *Store) SaveReport(ctx context.Context, report *types.AnalysisReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	summary := summarize(report)

	insertRun, err := s.db.GetPreparedStatement("insert_run")
	if err != nil {
		return err
	}
	if _, err := tx.StmtContext(ctx, insertRun).ExecContext(ctx,
		summary.ID, summary.CandidateName, summary.GithubUsername,
		summary.RepoCount, summary.SkippedCount, summary.WarningCount,
		string(payload), summary.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert analysis run: %w", err)
	}

	insertSkill, err := s.db.GetPreparedStatement("insert_skill_record")
	if err != nil {
		return err
	}
	stmt := tx.StmtContext(ctx, insertSkill)

	records := make([]SkillRecord, 0, len(report.ClaimedSkills)+len(report.AdditionalSkills))
	for _, vs := range report.ClaimedSkills {
		records = append(records, newSkillRecord(report.ID, vs, true, report.CreatedAt))
	}
	for _, vs := range report.AdditionalSkills {
		records = append(records, newSkillRecord(report.ID, vs, false, report.CreatedAt))
	}

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			rec.ID, rec.RunID, rec.Skill, rec.SkillKey, rec.Level,
			rec.FinalScore, rec.Verified, rec.Claimed, rec.ReposUsed, rec.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert skill record: %w", err)
		}
	}

	return tx.Commit()
}

// GetReport loads a stored analysis report by run ID
func (s *Store) GetReport(ctx context.Context, id string) (*types.AnalysisReport, error) {
	stmt, err := s.db.GetPreparedStatement("get_run")
	if err != nil {
		return nil, err
	}

	var payload string
	err = stmt.QueryRowContext(ctx, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("analysis", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis run: %w", err)
	}

	var report types.AnalysisReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return &report, nil
}

// ListRecent returns the most recent run summaries, newest first
func (s *Store) ListRecent(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	stmt, err := s.db.GetPreparedStatement("list_runs")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis runs: %w", err)
	}
	defer rows.Close()

	summaries := make([]RunSummary, 0, limit)
	for rows.Next() {
		var rs RunSummary
		if err := rows.Scan(&rs.ID, &rs.CandidateName, &rs.GithubUsername,
			&rs.RepoCount, &rs.SkippedCount, &rs.WarningCount, &rs.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		summaries = append(summaries, rs)
	}

	return summaries, rows.Err()
}

// TopSkills returns the most frequently verified skills across stored
// runs, with their average final score.
func (s *Store) TopSkills(ctx context.Context, limit int) ([]types.TopSkill, error) {
	if limit <= 0 {
		limit = 10
	}

	stmt, err := s.db.GetPreparedStatement("top_skills")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top skills: %w", err)
	}
	defer rows.Close()

	skills := make([]types.TopSkill, 0, limit)
	for rows.Next() {
		var ts types.TopSkill
		if err := rows.Scan(&ts.Skill, &ts.Count, &ts.AverageScore); err != nil {
			return nil, fmt.Errorf("failed to scan top skill: %w", err)
		}
		skills = append(skills, ts)
	}

	return skills, rows.Err()
}

// PurgeOlderThan deletes runs created before the cutoff and returns the
// number of runs removed. Skill rows go with their run via the cascade.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	// The cascade only fires with foreign_keys ON, which the connection
	// string pragma guarantees; the explicit delete keeps us correct on
	// databases created before the pragma was added.
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM skill_records WHERE run_id IN (SELECT id FROM analysis_runs WHERE created_at < ?)`,
		cutoff,
	); err != nil {
		return 0, fmt.Errorf("failed to purge skill records: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge analysis runs: %w", err)
	}

	return res.RowsAffected()
}

// DeleteByCandidate removes every stored run for a candidate name and
// returns the number of runs removed.
func (s *Store) DeleteByCandidate(ctx context.Context, candidateName string) (int64, error) {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM skill_records WHERE run_id IN (SELECT id FROM analysis_runs WHERE candidate_name = ?)`,
		candidateName,
	); err != nil {
		return 0, fmt.Errorf("failed to delete skill records: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_runs WHERE candidate_name = ?`, candidateName)
	if err != nil {
		return 0, fmt.Errorf("failed to delete analysis runs: %w", err)
	}

	return res.RowsAffected()
}

// CountRuns returns the total number of stored analysis runs
func (s *Store) CountRuns(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_runs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count analysis runs: %w", err)
	}
	return count, nil
}
