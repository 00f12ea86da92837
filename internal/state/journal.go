/*

Decision journal. Every tick's outcome is persisted so the dashboard and
post-hoc analysis can reconstruct what the engine decided and why.

*/

package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/stablerotor/rotor/internal/types"
)

// SaveDecision persists one decision record.
func SaveDecision(d types.Decision) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO decisions (
			decision_id, decision_timestamp, action, from_pool, to_pool, reason,
			guard_reason, held_net_apy_bps, candidate_net_apy_bps, payback_hours,
			dry_run, executed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`

	_, err := DB.Exec(query,
		d.ID, d.Timestamp, string(d.Action),
		nullableString(string(d.FromPool)), nullableString(string(d.ToPool)),
		d.Reason, nullableString(string(d.Guard.Reason)),
		d.HeldNetApyBps, d.CandidateNetApyBps, d.PaybackHours,
		d.DryRun, d.Executed,
	)
	if err != nil {
		return fmt.Errorf("failed to save decision %s: %w", d.ID, err)
	}

	log.Debug().Str("decisionId", d.ID).Str("action", string(d.Action)).Msg("Decision journaled")
	return nil
}

// GetRecentDecisions returns the most recent decisions, newest first.
func GetRecentDecisions(limit int) ([]types.Decision, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT decision_id, decision_timestamp, action, from_pool, to_pool, reason,
		       guard_reason, held_net_apy_bps, candidate_net_apy_bps, payback_hours,
		       dry_run, executed
		FROM decisions
		ORDER BY decision_timestamp DESC
		LIMIT $1;`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent decisions: %w", err)
	}
	defer rows.Close()

	var decisions []types.Decision
	for rows.Next() {
		var d types.Decision
		var fromPool, toPool, guardReason sql.NullString
		var payback sql.NullFloat64
		if err := rows.Scan(
			&d.ID, &d.Timestamp, &d.Action, &fromPool, &toPool, &d.Reason,
			&guardReason, &d.HeldNetApyBps, &d.CandidateNetApyBps, &payback,
			&d.DryRun, &d.Executed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan decision row: %w", err)
		}
		d.FromPool = types.PoolID(fromPool.String)
		d.ToPool = types.PoolID(toPool.String)
		if guardReason.String != "" {
			d.Guard = types.GuardResult{Triggered: true, Reason: types.GuardReason(guardReason.String)}
		}
		d.PaybackHours = payback.Float64
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// CountDecisions returns the total number of journaled decisions.
func CountDecisions() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	var count int
	if err := DB.QueryRow(`SELECT COUNT(*) FROM decisions;`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count decisions: %w", err)
	}
	return count, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
