/*

Persistent per-day rotation counter. Stored in the database so the daily
rotation cap holds across process restarts.

*/

package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// GetRotationCount returns the rotation count for a calendar day.
func GetRotationCount(day time.Time) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `SELECT rotation_count FROM rotation_days WHERE rotation_day = $1;`

	var count int
	err := DB.QueryRow(query, day.Format("2006-01-02")).Scan(&count)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get rotation count: %w", err)
	}
	return count, nil
}

// IncrementRotationCount bumps the counter for a calendar day and returns
// the new value.
func IncrementRotationCount(day time.Time) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO rotation_days (rotation_day, rotation_count, updated_at)
		VALUES ($1, 1, CURRENT_TIMESTAMP)
		ON CONFLICT (rotation_day) DO UPDATE
		SET rotation_count = rotation_days.rotation_count + 1,
		    updated_at = CURRENT_TIMESTAMP
		RETURNING rotation_count;`

	var newCount int
	if err := DB.QueryRow(query, day.Format("2006-01-02")).Scan(&newCount); err != nil {
		return 0, fmt.Errorf("failed to increment rotation count: %w", err)
	}

	log.Info().Str("day", day.Format("2006-01-02")).Int("count", newCount).Msg("Incremented daily rotation counter")
	return newCount, nil
}
