package policy

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/stablerotor/rotor/internal/logger"
	"github.com/stablerotor/rotor/internal/state"
	"github.com/stablerotor/rotor/internal/types"
)

// dbStore satisfies Store on top of the shared database layer.
type dbStore struct{}

// NewDBStore returns the database-backed Store.
func NewDBStore() Store {
	return dbStore{}
}

func (dbStore) SaveDecision(d types.Decision) error         { return state.SaveDecision(d) }
func (dbStore) LoadPosition() (*types.Position, error)      { return state.LoadPosition() }
func (dbStore) SavePosition(pos types.Position) error       { return state.SavePosition(pos) }
func (dbStore) ClearPosition() error                        { return state.ClearPosition() }
func (dbStore) GetRotationCount(day time.Time) (int, error) { return state.GetRotationCount(day) }
func (dbStore) IncrementRotationCount(day time.Time) (int, error) {
	return state.IncrementRotationCount(day)
}

// LogExecutor is the default Executor. It accepts every request and logs
// its full shape; wiring a broadcasting executor in its place is the only
// change needed to go live.
type LogExecutor struct {
	logger zerolog.Logger
}

// NewLogExecutor creates the logging executor.
func NewLogExecutor() *LogExecutor {
	return &LogExecutor{logger: logger.GetForComponent("executor")}
}

func (l *LogExecutor) ExecuteEnter(_ context.Context, req types.VaultEnterRequest) error {
	l.logger.Info().
		Str("poolId", string(req.PoolID)).
		Str("target", req.Target).
		Str("token", string(req.Token)).
		Str("amount", req.Amount.String()).
		Str("minOut", req.MinOut.String()).
		Time("deadline", req.Deadline).
		Int64("netApyBps", req.NetApyBps).
		Msg("LIVE: enter request accepted")
	return nil
}

func (l *LogExecutor) ExecuteExit(_ context.Context, req types.VaultExitRequest) error {
	l.logger.Info().
		Str("poolId", string(req.PoolID)).
		Str("target", req.Target).
		Str("token", string(req.Token)).
		Str("amount", req.Amount.String()).
		Str("minOut", req.MinOut.String()).
		Time("deadline", req.Deadline).
		Msg("LIVE: exit request accepted")
	return nil
}
