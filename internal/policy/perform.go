package policy

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stablerotor/rotor/internal/types"
)

// DEADLINE_WINDOW bounds how long a built request stays valid.
const DEADLINE_WINDOW = 5 * time.Minute

// performEnter applies the two safety gates and, when both are open,
// forwards the enter request to the executor. Position state is updated on
// success and in simulation; a real execution failure leaves it untouched.
func (e *Engine) performEnter(ctx context.Context, tickLogger zerolog.Logger, snap types.PoolSnapshot) bool {
	executed := false

	if e.cfg.DryRun {
		tickLogger.Info().Str("poolId", string(snap.Config.ID)).Msg("DRY RUN: enter request not built")
	} else {
		adapter, err := e.registry.ForPool(snap.Config)
		if err != nil {
			tickLogger.Error().Err(err).Str("poolId", string(snap.Config.ID)).Msg("Failed to resolve adapter for enter")
			return false
		}
		req, err := adapter.BuildEnterRequest(e.enterIntent(snap))
		if err != nil {
			tickLogger.Error().Err(err).Str("poolId", string(snap.Config.ID)).Msg("Failed to build enter request")
			return false
		}

		if !e.cfg.LiveArmed {
			tickLogger.Info().Str("poolId", string(req.PoolID)).Msg("Live trading not armed, withholding enter request")
		} else {
			if err := e.executor.ExecuteEnter(ctx, req); err != nil {
				tickLogger.Error().Err(err).Str("poolId", string(req.PoolID)).Msg("Enter execution failed, position unchanged")
				return false
			}
			executed = true
		}
	}

	now := time.Now()
	pos := types.Position{PoolID: snap.Config.ID, EnteredAt: now}
	if err := e.store.SavePosition(pos); err != nil {
		tickLogger.Error().Err(err).Msg("Failed to persist position")
	}

	e.mu.Lock()
	e.position = &pos
	e.lastRotation = now
	e.mu.Unlock()

	return executed
}

// performExit mirrors performEnter for the exit side. The held snapshot may
// be nil when the held pool's fetch failed this tick; the request is then
// built from catalog data alone.
func (e *Engine) performExit(ctx context.Context, tickLogger zerolog.Logger, position types.Position, heldSnap *types.PoolSnapshot) bool {
	executed := false

	if e.cfg.DryRun {
		tickLogger.Info().Str("poolId", string(position.PoolID)).Msg("DRY RUN: exit request not built")
	} else {
		pool, ok := e.catalog.PoolByID[position.PoolID]
		if !ok {
			tickLogger.Error().Str("poolId", string(position.PoolID)).Msg("Held pool missing from catalog, cannot build exit request")
			return false
		}
		if heldSnap != nil {
			pool = heldSnap.Config
		}

		adapter, err := e.registry.ForPool(pool)
		if err != nil {
			tickLogger.Error().Err(err).Str("poolId", string(pool.ID)).Msg("Failed to resolve adapter for exit")
			return false
		}
		req, err := adapter.BuildExitRequest(types.RequestIntent{
			Pool:           pool,
			Amount:         decimal.NewFromFloat(e.cfg.DefaultTradeSizeUsd),
			MaxSlippageBps: e.cfg.MaxSlippageBps,
			Deadline:       time.Now().Add(DEADLINE_WINDOW),
		})
		if err != nil {
			tickLogger.Error().Err(err).Str("poolId", string(pool.ID)).Msg("Failed to build exit request")
			return false
		}

		if !e.cfg.LiveArmed {
			tickLogger.Info().Str("poolId", string(req.PoolID)).Msg("Live trading not armed, withholding exit request")
		} else {
			if err := e.executor.ExecuteExit(ctx, req); err != nil {
				tickLogger.Error().Err(err).Str("poolId", string(req.PoolID)).Msg("Exit execution failed, position unchanged")
				return false
			}
			executed = true
		}
	}

	if err := e.store.ClearPosition(); err != nil {
		tickLogger.Error().Err(err).Msg("Failed to clear persisted position")
	}

	e.mu.Lock()
	e.position = nil
	e.lastRotation = time.Now()
	e.mu.Unlock()

	return executed
}

// performRotate exits the held pool and enters the candidate. The exit leg
// must fully resolve before the enter leg runs; a failed exit aborts the
// rotation with the position unchanged.
func (e *Engine) performRotate(ctx context.Context, tickLogger zerolog.Logger, position types.Position, heldSnap *types.PoolSnapshot, candidate types.PoolSnapshot) bool {
	wasLive := !e.cfg.DryRun && e.cfg.LiveArmed

	exitExecuted := e.performExit(ctx, tickLogger, position, heldSnap)
	if wasLive && !exitExecuted {
		tickLogger.Error().Str("fromPool", string(position.PoolID)).Msg("Rotation aborted, exit leg did not execute")
		return false
	}

	enterExecuted := e.performEnter(ctx, tickLogger, candidate)

	day := time.Now().UTC()
	if _, err := e.store.IncrementRotationCount(day); err != nil {
		tickLogger.Error().Err(err).Msg("Failed to increment daily rotation counter")
	}

	return exitExecuted && enterExecuted
}

func (e *Engine) enterIntent(snap types.PoolSnapshot) types.RequestIntent {
	return types.RequestIntent{
		Pool:           snap.Config,
		Amount:         decimal.NewFromFloat(e.cfg.DefaultTradeSizeUsd),
		MaxSlippageBps: e.cfg.MaxSlippageBps,
		Deadline:       time.Now().Add(DEADLINE_WINDOW),
		NetApyBps:      snap.NetApyBps,
		IntendedHold:   time.Duration(e.cfg.MinHoldSeconds) * time.Second,
	}
}
