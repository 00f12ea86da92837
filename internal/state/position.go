/*

Single-row current position store. Persisting the held pool and its entry
time keeps minimum-hold and cooldown accounting honest across restarts.

*/

package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/stablerotor/rotor/internal/types"
)

// LoadPosition returns the persisted current position, or nil if the engine
// is unpositioned.
func LoadPosition() (*types.Position, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `SELECT pool_id, entered_at FROM current_position WHERE id = 1;`

	var poolID sql.NullString
	var enteredAt sql.NullTime
	err := DB.QueryRow(query).Scan(&poolID, &enteredAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load position: %w", err)
	}

	if !poolID.Valid || poolID.String == "" {
		return nil, nil
	}
	return &types.Position{
		PoolID:    types.PoolID(poolID.String),
		EnteredAt: enteredAt.Time,
	}, nil
}

// SavePosition persists the current position.
func SavePosition(pos types.Position) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		UPDATE current_position
		SET pool_id = $1, entered_at = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1;`

	if _, err := DB.Exec(query, string(pos.PoolID), pos.EnteredAt); err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}

	log.Debug().Str("poolId", string(pos.PoolID)).Time("enteredAt", pos.EnteredAt).Msg("Position persisted")
	return nil
}

// ClearPosition marks the engine unpositioned.
func ClearPosition() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		UPDATE current_position
		SET pool_id = NULL, entered_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1;`

	if _, err := DB.Exec(query); err != nil {
		return fmt.Errorf("failed to clear position: %w", err)
	}
	return nil
}
