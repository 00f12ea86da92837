/*

The rotation decision engine. On each scan tick it joins fresh pool
snapshots, current stable prices, and guard evaluations into exactly one
action: HOLD, ENTER, EXIT, or ROTATE. Safety guards override yield logic
unconditionally; temporal constraints (cooldown, minimum hold, daily cap)
gate every position change.

*/

package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stablerotor/rotor/internal/adapters"
	"github.com/stablerotor/rotor/internal/config"
	"github.com/stablerotor/rotor/internal/guards"
	"github.com/stablerotor/rotor/internal/logger"
	"github.com/stablerotor/rotor/internal/types"
)

// PriceSource is the oracle contract the engine depends on.
type PriceSource interface {
	GetPriceUsd(ctx context.Context, symbol types.TokenSymbol) (float64, error)
	GetStablePricesUsd(ctx context.Context) (map[types.TokenSymbol]float64, error)
}

// Store persists decisions, the current position, and the daily rotation
// counter.
type Store interface {
	SaveDecision(d types.Decision) error
	LoadPosition() (*types.Position, error)
	SavePosition(pos types.Position) error
	ClearPosition() error
	GetRotationCount(day time.Time) (int, error)
	IncrementRotationCount(day time.Time) (int, error)
}

// Executor is the execution boundary. The engine builds requests; whether
// they cross this boundary depends on the two safety gates.
type Executor interface {
	ExecuteEnter(ctx context.Context, req types.VaultEnterRequest) error
	ExecuteExit(ctx context.Context, req types.VaultExitRequest) error
}

// AdapterSource resolves pool configs to venue adapters.
type AdapterSource interface {
	ForPool(pool types.PoolConfig) (adapters.Adapter, error)
}

// Engine is the per-process rotation policy state machine.
type Engine struct {
	logger   zerolog.Logger
	cfg      *config.Config
	catalog  *config.PoolCatalog
	registry AdapterSource
	prices   PriceSource
	store    Store
	executor Executor
	history  *guards.History

	mu            sync.Mutex
	position      *types.Position
	lastRotation  time.Time
	paused        bool
	exitRequested bool
	rotateTarget  types.PoolID

	tickCount int
	lastTick  time.Time
}

// Config holds the dependencies for creating an Engine.
type Config struct {
	Runtime  *config.Config
	Catalog  *config.PoolCatalog
	Registry AdapterSource
	Prices   PriceSource
	Store    Store
	Executor Executor
}

// NewEngine creates an Engine with dependency injection, restoring any
// persisted position so hold-time accounting survives restarts.
func NewEngine(cfg Config) (*Engine, error) {
	if err := validateEngineConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}

	engine := &Engine{
		logger:   logger.GetForComponent("rotation_policy"),
		cfg:      cfg.Runtime,
		catalog:  cfg.Catalog,
		registry: cfg.Registry,
		prices:   cfg.Prices,
		store:    cfg.Store,
		executor: cfg.Executor,
		history:  guards.NewHistory(),
	}

	pos, err := cfg.Store.LoadPosition()
	if err != nil {
		return nil, fmt.Errorf("failed to restore position: %w", err)
	}
	engine.position = pos
	if pos != nil {
		engine.logger.Info().
			Str("poolId", string(pos.PoolID)).
			Time("enteredAt", pos.EnteredAt).
			Msg("Restored persisted position")
	}

	return engine, nil
}

func validateEngineConfig(cfg Config) error {
	if cfg.Runtime == nil {
		return fmt.Errorf("runtime config cannot be nil")
	}
	if cfg.Catalog == nil {
		return fmt.Errorf("pool catalog cannot be nil")
	}
	if cfg.Registry == nil {
		return fmt.Errorf("adapter registry cannot be nil")
	}
	if cfg.Prices == nil {
		return fmt.Errorf("price source cannot be nil")
	}
	if cfg.Store == nil {
		return fmt.Errorf("store cannot be nil")
	}
	if cfg.Executor == nil {
		return fmt.Errorf("executor cannot be nil")
	}
	return nil
}

// RunLoop drives the scan loop. Ticks never overlap: the next tick waits
// for the previous one to resolve all adapter and oracle calls, which keeps
// position and cooldown state consistent without extra locking.
func (e *Engine) RunLoop(ctx context.Context, interval time.Duration) {
	e.logger.Info().Dur("interval", interval).Msg("Starting rotation policy loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Rotation policy loop stopped due to context cancellation")
			return
		case <-ticker.C:
			e.runTick(ctx)
		}
	}
}

func (e *Engine) runTick(ctx context.Context) {
	e.mu.Lock()
	e.tickCount++
	tickNumber := e.tickCount
	e.mu.Unlock()

	tickLogger := e.logger.With().Str("tick_id", uuid.New().String()).Int("tick", tickNumber).Logger()
	tickLogger.Info().Msg("--- Starting decision tick ---")

	decision := e.Tick(ctx, tickLogger)

	e.mu.Lock()
	e.lastTick = time.Now()
	e.mu.Unlock()

	tickLogger.Info().
		Str("action", string(decision.Action)).
		Str("reason", decision.Reason).
		Bool("executed", decision.Executed).
		Msg("--- Decision tick completed ---")
}

// Pause suspends decision-making; ticks journal a HOLD until resumed.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
	e.logger.Warn().Msg("Engine paused")
}

// Resume lifts a pause.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
	e.logger.Info().Msg("Engine resumed")
}

// RequestExit forces an EXIT decision on the next tick if positioned.
func (e *Engine) RequestExit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exitRequested = true
	e.logger.Warn().Msg("Manual exit requested")
}

// RequestRotate forces a rotation into the given pool on the next tick,
// bypassing yield comparison but not the safety guards.
func (e *Engine) RequestRotate(poolID types.PoolID) error {
	if _, ok := e.catalog.PoolByID[poolID]; !ok {
		return fmt.Errorf("unknown pool id %q", poolID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rotateTarget = poolID
	e.logger.Warn().Str("poolId", string(poolID)).Msg("Manual rotation requested")
	return nil
}

// Status is a point-in-time view for the status endpoint.
type Status struct {
	Paused    bool            `json:"paused"`
	Position  *types.Position `json:"position"`
	TickCount int             `json:"tick_count"`
	LastTick  time.Time       `json:"last_tick"`
}

// Status returns the engine's current control-surface view.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	var pos *types.Position
	if e.position != nil {
		copied := *e.position
		pos = &copied
	}
	return Status{
		Paused:    e.paused,
		Position:  pos,
		TickCount: e.tickCount,
		LastTick:  e.lastTick,
	}
}
