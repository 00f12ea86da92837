package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stablerotor/rotor/internal/guards"
	"github.com/stablerotor/rotor/internal/telemetry"
	"github.com/stablerotor/rotor/internal/types"
	"github.com/stablerotor/rotor/internal/yieldmath"
)

// Tick executes one full decision pass and returns the journaled decision.
func (e *Engine) Tick(ctx context.Context, tickLogger zerolog.Logger) types.Decision {
	started := time.Now()
	defer func() {
		telemetry.TickDuration.Observe(time.Since(started).Seconds())
	}()

	e.mu.Lock()
	paused := e.paused
	exitRequested := e.exitRequested
	rotateTarget := e.rotateTarget
	e.exitRequested = false
	e.rotateTarget = ""
	position := e.position
	lastRotation := e.lastRotation
	e.mu.Unlock()

	decision := types.Decision{
		ID:        uuid.New().String(),
		Timestamp: started,
		Action:    types.ActionHold,
		DryRun:    e.cfg.DryRun,
	}
	if position != nil {
		decision.FromPool = position.PoolID
	}

	if paused {
		decision.Reason = "engine paused"
		return e.finalize(tickLogger, decision, nil)
	}

	// Stable prices feed the depeg guard; the oracle keeps this alive even
	// through feed outages, so an error here means no data at all.
	stablePrices, err := e.prices.GetStablePricesUsd(ctx)
	if err != nil {
		tickLogger.Error().Err(err).Msg("Failed to get stable prices")
		stablePrices = nil
	}

	snapshots := e.fetchSnapshots(ctx, tickLogger)
	var heldSnap *types.PoolSnapshot
	if position != nil {
		if snap, ok := snapshots[position.PoolID]; ok {
			heldSnap = &snap
			decision.HeldNetApyBps = snap.NetApyBps
		}
	}

	// Manual exit reduces exposure and takes precedence over everything,
	// including the depeg override below.
	if exitRequested && position != nil {
		decision.Action = types.ActionExit
		decision.Reason = "manual exit requested"
		decision.Executed = e.performExit(ctx, tickLogger, *position, heldSnap)
		return e.finalize(tickLogger, decision, snapshots)
	}

	// Step 1: depeg guard overrides yield logic unconditionally.
	depeg := guards.CheckDepeg(stablePrices, e.cfg.MaxDepegDeviationBps)
	if depeg.Triggered {
		decision.Guard = depeg
		if position != nil && e.cfg.EnterOnly {
			decision.Action = types.ActionExit
			decision.Reason = "depeg guard triggered in enter-only mode"
			decision.Executed = e.performExit(ctx, tickLogger, *position, heldSnap)
		} else {
			decision.Reason = "depeg guard triggered"
		}
		return e.finalize(tickLogger, decision, snapshots)
	}

	// Step 2: positioned-pool guards force EXIT.
	if position != nil {
		if heldSnap == nil {
			decision.Reason = "held pool state unavailable this tick"
			return e.finalize(tickLogger, decision, snapshots)
		}

		if slip := guards.CheckSlippage(*heldSnap, e.cfg.MaxSlippageBps); slip.Triggered {
			decision.Guard = slip
			decision.Action = types.ActionExit
			decision.Reason = "slippage guard triggered for held pool"
			decision.Executed = e.performExit(ctx, tickLogger, *position, heldSnap)
			return e.finalize(tickLogger, decision, snapshots)
		}
		if cliff := guards.CheckAprCliff(e.history, *heldSnap, e.cfg.AprCliffMinDropBps); cliff.Triggered {
			decision.Guard = cliff
			decision.Action = types.ActionExit
			decision.Reason = "APR cliff guard triggered for held pool"
			decision.Executed = e.performExit(ctx, tickLogger, *position, heldSnap)
			return e.finalize(tickLogger, decision, snapshots)
		}
	}

	// Manual rotation bypasses yield comparison but not the guards above.
	if rotateTarget != "" {
		if snap, ok := snapshots[rotateTarget]; ok && (position == nil || rotateTarget != position.PoolID) {
			decision.ToPool = rotateTarget
			decision.CandidateNetApyBps = snap.NetApyBps
			if position == nil {
				decision.Action = types.ActionEnter
				decision.Reason = "manual entry requested"
				decision.Executed = e.performEnter(ctx, tickLogger, snap)
			} else {
				decision.Action = types.ActionRotate
				decision.Reason = "manual rotation requested"
				decision.Executed = e.performRotate(ctx, tickLogger, *position, heldSnap, snap)
			}
			return e.finalize(tickLogger, decision, snapshots)
		}
		tickLogger.Warn().Str("poolId", string(rotateTarget)).Msg("Manual rotation target unavailable this tick")
	}

	// Steps 3-4: rank candidates by net APY.
	candidate, ok := bestCandidate(snapshots, position)
	if !ok {
		decision.Reason = "no eligible pools this tick"
		return e.finalize(tickLogger, decision, snapshots)
	}
	decision.ToPool = candidate.Config.ID
	decision.CandidateNetApyBps = candidate.NetApyBps

	now := time.Now()
	cooldownOver := lastRotation.IsZero() || now.Sub(lastRotation) > time.Duration(e.cfg.CooldownSeconds)*time.Second

	// Step 5: unpositioned entry.
	if position == nil {
		if !cooldownOver {
			decision.Reason = "cooldown active since last position change"
			return e.finalize(tickLogger, decision, snapshots)
		}
		decision.Action = types.ActionEnter
		decision.Reason = fmt.Sprintf("entering highest net APY pool (%d bps)", candidate.NetApyBps)
		decision.Executed = e.performEnter(ctx, tickLogger, candidate)
		return e.finalize(tickLogger, decision, snapshots)
	}

	// Step 4: rotation constraints, cheapest checks first.
	deltaApy := candidate.NetApyBps - heldSnap.NetApyBps
	if deltaApy < e.cfg.RotationDeltaApyBps {
		decision.Reason = fmt.Sprintf("APY delta %d bps below rotation threshold %d", deltaApy, e.cfg.RotationDeltaApyBps)
		return e.finalize(tickLogger, decision, snapshots)
	}

	costBps := e.rotationCostBps(*heldSnap)
	payback := yieldmath.PaybackHours(costBps, deltaApy)
	decision.PaybackHours = payback
	if payback > e.cfg.MaxPaybackHours {
		decision.Reason = fmt.Sprintf("payback %.1fh exceeds cap %.1fh (cost %d bps, delta %d bps)",
			payback, e.cfg.MaxPaybackHours, costBps, deltaApy)
		return e.finalize(tickLogger, decision, snapshots)
	}

	if held := now.Sub(position.EnteredAt); held < time.Duration(e.cfg.MinHoldSeconds)*time.Second {
		decision.Reason = fmt.Sprintf("minimum hold not elapsed (%s held)", held.Round(time.Second))
		return e.finalize(tickLogger, decision, snapshots)
	}

	day := now.UTC()
	count, err := e.store.GetRotationCount(day)
	if err != nil {
		tickLogger.Error().Err(err).Msg("Failed to read daily rotation count, holding")
		decision.Reason = "rotation counter unavailable"
		return e.finalize(tickLogger, decision, snapshots)
	}
	if count >= e.cfg.MaxRotationsPerDay {
		decision.Reason = fmt.Sprintf("daily rotation cap reached (%d/%d)", count, e.cfg.MaxRotationsPerDay)
		return e.finalize(tickLogger, decision, snapshots)
	}

	if !cooldownOver {
		decision.Reason = "cooldown active since last position change"
		return e.finalize(tickLogger, decision, snapshots)
	}

	decision.Action = types.ActionRotate
	decision.Reason = fmt.Sprintf("rotating for %d bps APY gain, payback %.1fh", deltaApy, payback)
	decision.Executed = e.performRotate(ctx, tickLogger, *position, heldSnap, candidate)
	return e.finalize(tickLogger, decision, snapshots)
}

// fetchSnapshots reads on-chain state for every enabled pool concurrently.
// A failing venue is excluded for this tick only; it must not stall or
// abort evaluation of the others.
func (e *Engine) fetchSnapshots(ctx context.Context, tickLogger zerolog.Logger) map[types.PoolID]types.PoolSnapshot {
	enabled := e.catalog.Enabled()
	results := make(map[types.PoolID]types.PoolSnapshot, len(enabled))
	var mu sync.Mutex

	g, groupCtx := errgroup.WithContext(ctx)
	for _, pool := range enabled {
		pool := pool
		g.Go(func() error {
			snap, err := e.buildSnapshot(groupCtx, pool)
			if err != nil {
				tickLogger.Warn().Err(err).Str("poolId", string(pool.ID)).Msg("Pool excluded for this tick")
				telemetry.PoolFetchFailures.WithLabelValues(string(pool.ID)).Inc()
				return nil
			}
			mu.Lock()
			results[pool.ID] = snap
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// buildSnapshot reads one pool's state and derives its yield figures.
func (e *Engine) buildSnapshot(ctx context.Context, pool types.PoolConfig) (types.PoolSnapshot, error) {
	adapter, err := e.registry.ForPool(pool)
	if err != nil {
		return types.PoolSnapshot{}, err
	}

	state, err := adapter.FetchPoolState(ctx, pool)
	if err != nil {
		return types.PoolSnapshot{}, err
	}

	rewardPrice := 0.0
	if pool.RewardRatePerSec > 0 && pool.RewardToken != "" {
		rewardPrice, err = e.prices.GetPriceUsd(ctx, pool.RewardToken)
		if err != nil {
			return types.PoolSnapshot{}, fmt.Errorf("failed to price reward token %s: %w", pool.RewardToken, err)
		}
	}

	incentive := yieldmath.IncentiveAprBps(pool.RewardRatePerSec, rewardPrice, state.TvlUsd)
	return types.PoolSnapshot{
		Config:          pool,
		State:           state,
		IncentiveAprBps: incentive,
		NetApyBps:       yieldmath.NetApyBps(pool.BaseApyBps, incentive, pool.ProtocolFeeBps),
		SlippageBps:     adapter.EstimatePriceImpactBps(state, e.cfg.DefaultTradeSizeUsd),
	}, nil
}

// bestCandidate picks the highest net APY pool other than the held one.
func bestCandidate(snapshots map[types.PoolID]types.PoolSnapshot, position *types.Position) (types.PoolSnapshot, bool) {
	var best types.PoolSnapshot
	found := false
	for _, snap := range snapshots {
		if position != nil && snap.Config.ID == position.PoolID {
			continue
		}
		if !found || snap.NetApyBps > best.NetApyBps {
			best = snap
			found = true
		}
	}
	return best, found
}

func (e *Engine) rotationCostBps(held types.PoolSnapshot) int64 {
	adapter, err := e.registry.ForPool(held.Config)
	if err != nil {
		return held.Config.RotationCostBps
	}
	return adapter.EstimateRotationCostBps(held.Config, held.State, e.cfg.DefaultTradeSizeUsd)
}

// finalize records history, journals the decision, and updates metrics.
// History is recorded after guard evaluation so the APR-cliff baseline is
// always the previous tick, never the current one.
func (e *Engine) finalize(tickLogger zerolog.Logger, decision types.Decision, snapshots map[types.PoolID]types.PoolSnapshot) types.Decision {
	for _, snap := range snapshots {
		e.history.Record(snap)
	}

	telemetry.Decisions.WithLabelValues(string(decision.Action)).Inc()
	if err := e.store.SaveDecision(decision); err != nil {
		tickLogger.Error().Err(err).Msg("Failed to journal decision")
	}
	return decision
}
