package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stablerotor/rotor/internal/adapters"
	"github.com/stablerotor/rotor/internal/config"
	"github.com/stablerotor/rotor/internal/types"
)

// --- fakes ---

type fakePrices struct {
	stables map[types.TokenSymbol]float64
	rewards map[types.TokenSymbol]float64
	err     error
}

func (f *fakePrices) GetPriceUsd(_ context.Context, symbol types.TokenSymbol) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	price, ok := f.rewards[symbol]
	if !ok {
		return 0, errors.New("no price")
	}
	return price, nil
}

func (f *fakePrices) GetStablePricesUsd(context.Context) (map[types.TokenSymbol]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stables, nil
}

type fakeStore struct {
	decisions     []types.Decision
	position      *types.Position
	rotationCount int
	incremented   int
}

func (f *fakeStore) SaveDecision(d types.Decision) error { f.decisions = append(f.decisions, d); return nil }
func (f *fakeStore) LoadPosition() (*types.Position, error) { return f.position, nil }
func (f *fakeStore) SavePosition(pos types.Position) error  { f.position = &pos; return nil }
func (f *fakeStore) ClearPosition() error                   { f.position = nil; return nil }
func (f *fakeStore) GetRotationCount(time.Time) (int, error) {
	return f.rotationCount, nil
}
func (f *fakeStore) IncrementRotationCount(time.Time) (int, error) {
	f.incremented++
	f.rotationCount++
	return f.rotationCount, nil
}

type fakeExecutor struct {
	enters []types.VaultEnterRequest
	exits  []types.VaultExitRequest
	err    error
}

func (f *fakeExecutor) ExecuteEnter(_ context.Context, req types.VaultEnterRequest) error {
	if f.err != nil {
		return f.err
	}
	f.enters = append(f.enters, req)
	return nil
}

func (f *fakeExecutor) ExecuteExit(_ context.Context, req types.VaultExitRequest) error {
	if f.err != nil {
		return f.err
	}
	f.exits = append(f.exits, req)
	return nil
}

type fakeAdapter struct {
	state    types.PoolOnChainState
	fetchErr error
	impact   int64
	cost     int64
}

func (f *fakeAdapter) FetchPoolState(context.Context, types.PoolConfig) (types.PoolOnChainState, error) {
	return f.state, f.fetchErr
}
func (f *fakeAdapter) EstimatePriceImpactBps(types.PoolOnChainState, float64) int64 { return f.impact }
func (f *fakeAdapter) EstimateRotationCostBps(types.PoolConfig, types.PoolOnChainState, float64) int64 {
	return f.cost
}
func (f *fakeAdapter) BuildEnterRequest(intent types.RequestIntent) (types.VaultEnterRequest, error) {
	return types.VaultEnterRequest{PoolID: intent.Pool.ID, Amount: intent.Amount}, nil
}
func (f *fakeAdapter) BuildExitRequest(intent types.RequestIntent) (types.VaultExitRequest, error) {
	return types.VaultExitRequest{PoolID: intent.Pool.ID, Amount: intent.Amount}, nil
}

type fakeAdapters map[types.PoolID]*fakeAdapter

func (f fakeAdapters) ForPool(pool types.PoolConfig) (adapters.Adapter, error) {
	adapter, ok := f[pool.ID]
	if !ok {
		return nil, adapters.ErrUnknownAdapter
	}
	return adapter, nil
}

// --- fixture ---

func testRuntime() *config.Config {
	return &config.Config{
		DryRun:               true,
		ScanInterval:         time.Minute,
		MaxRotationsPerDay:   4,
		CooldownSeconds:      1800,
		MinHoldSeconds:       21600,
		DefaultTradeSizeUsd:  10000,
		RotationDeltaApyBps:  200,
		MaxPaybackHours:      72,
		MaxDepegDeviationBps: 100,
		MaxSlippageBps:       50,
		AprCliffMinDropBps:   5000,
		StableSymbols:        []string{"USDC"},
	}
}

func poolWithApy(id types.PoolID, baseApyBps int64) types.PoolConfig {
	return types.PoolConfig{
		ID:         id,
		Enabled:    true,
		Token:      "USDC",
		AdapterID:  "lending_v1",
		BaseApyBps: baseApyBps,
	}
}

func catalogOf(pools ...types.PoolConfig) *config.PoolCatalog {
	catalog := &config.PoolCatalog{
		Pools:    pools,
		PoolByID: make(map[types.PoolID]types.PoolConfig, len(pools)),
	}
	for _, p := range pools {
		catalog.PoolByID[p.ID] = p
	}
	return catalog
}

type harness struct {
	engine   *Engine
	store    *fakeStore
	executor *fakeExecutor
}

func newHarness(t *testing.T, cfg *config.Config, catalog *config.PoolCatalog, source fakeAdapters, store *fakeStore) *harness {
	t.Helper()
	executor := &fakeExecutor{}
	engine, err := NewEngine(Config{
		Runtime:  cfg,
		Catalog:  catalog,
		Registry: source,
		Prices:   &fakePrices{stables: map[types.TokenSymbol]float64{"USDC": 1.0}},
		Store:    store,
		Executor: executor,
	})
	require.NoError(t, err)
	return &harness{engine: engine, store: store, executor: executor}
}

func (h *harness) tick() types.Decision {
	return h.engine.Tick(context.Background(), zerolog.Nop())
}

func healthyAdapters(ids ...types.PoolID) fakeAdapters {
	source := fakeAdapters{}
	for _, id := range ids {
		source[id] = &fakeAdapter{state: types.PoolOnChainState{PoolID: id, TvlUsd: 1_000_000, LiquidityUsd: 1_000_000}}
	}
	return source
}

func heldPosition(age time.Duration) *types.Position {
	return &types.Position{PoolID: "pool-a", EnteredAt: time.Now().Add(-age)}
}

// --- tests ---

func TestEnterWhenUnpositioned(t *testing.T) {
	catalog := catalogOf(poolWithApy("pool-a", 400), poolWithApy("pool-b", 700))
	h := newHarness(t, testRuntime(), catalog, healthyAdapters("pool-a", "pool-b"), &fakeStore{})

	decision := h.tick()

	assert.Equal(t, types.ActionEnter, decision.Action)
	assert.Equal(t, types.PoolID("pool-b"), decision.ToPool)
	assert.False(t, decision.Executed, "dry run never executes")
	require.NotNil(t, h.store.position)
	assert.Equal(t, types.PoolID("pool-b"), h.store.position.PoolID)
	require.Len(t, h.store.decisions, 1)
}

func TestPaybackCapBlocksRotation(t *testing.T) {
	catalog := catalogOf(poolWithApy("pool-a", 400), poolWithApy("pool-b", 700))
	source := healthyAdapters("pool-a", "pool-b")
	source["pool-a"].cost = 12 // (12/300)*8760 ≈ 350h, far over the 72h cap

	h := newHarness(t, testRuntime(), catalog, source, &fakeStore{position: heldPosition(48 * time.Hour)})

	decision := h.tick()

	assert.Equal(t, types.ActionHold, decision.Action)
	assert.Contains(t, decision.Reason, "payback")
	assert.InDelta(t, 350.4, decision.PaybackHours, 0.01)
	require.NotNil(t, h.store.position)
	assert.Equal(t, types.PoolID("pool-a"), h.store.position.PoolID, "position must be unchanged")
}

func TestRotateWhenEconomic(t *testing.T) {
	catalog := catalogOf(poolWithApy("pool-a", 400), poolWithApy("pool-b", 700))
	source := healthyAdapters("pool-a", "pool-b")
	source["pool-a"].cost = 1 // (1/300)*8760 ≈ 29h, under the cap

	h := newHarness(t, testRuntime(), catalog, source, &fakeStore{position: heldPosition(48 * time.Hour)})

	decision := h.tick()

	assert.Equal(t, types.ActionRotate, decision.Action)
	assert.Equal(t, types.PoolID("pool-a"), decision.FromPool)
	assert.Equal(t, types.PoolID("pool-b"), decision.ToPool)
	require.NotNil(t, h.store.position)
	assert.Equal(t, types.PoolID("pool-b"), h.store.position.PoolID)
	assert.Equal(t, 1, h.store.incremented, "daily counter must be bumped")
}

func TestApyDeltaBelowThresholdHolds(t *testing.T) {
	catalog := catalogOf(poolWithApy("pool-a", 400), poolWithApy("pool-b", 500))
	h := newHarness(t, testRuntime(), catalog, healthyAdapters("pool-a", "pool-b"),
		&fakeStore{position: heldPosition(48 * time.Hour)})

	decision := h.tick()

	assert.Equal(t, types.ActionHold, decision.Action)
	assert.Contains(t, decision.Reason, "threshold")
}

func TestDepegGuardForcesHold(t *testing.T) {
	catalog := catalogOf(poolWithApy("pool-a", 400), poolWithApy("pool-b", 700))
	h := newHarness(t, testRuntime(), catalog, healthyAdapters("pool-a", "pool-b"), &fakeStore{})
	h.engine.prices = &fakePrices{stables: map[types.TokenSymbol]float64{"USDC": 1.05}}

	decision := h.tick()

	assert.Equal(t, types.ActionHold, decision.Action)
	require.True(t, decision.Guard.Triggered)
	assert.Equal(t, types.GuardReasonDepeg, decision.Guard.Reason)
	assert.Nil(t, h.store.position, "no entry during a depeg")
}

func TestDepegInEnterOnlyModeForcesExit(t *testing.T) {
	cfg := testRuntime()
	cfg.EnterOnly = true
	catalog := catalogOf(poolWithApy("pool-a", 400))
	h := newHarness(t, cfg, catalog, healthyAdapters("pool-a"), &fakeStore{position: heldPosition(time.Hour)})
	h.engine.prices = &fakePrices{stables: map[types.TokenSymbol]float64{"USDC": 0.97}}

	decision := h.tick()

	assert.Equal(t, types.ActionExit, decision.Action)
	assert.Nil(t, h.store.position)
}

func TestPriceOutageIsWorstCase(t *testing.T) {
	catalog := catalogOf(poolWithApy("pool-a", 400))
	h := newHarness(t, testRuntime(), catalog, healthyAdapters("pool-a"), &fakeStore{})
	h.engine.prices = &fakePrices{err: errors.New("feed down")}

	decision := h.tick()

	assert.Equal(t, types.ActionHold, decision.Action)
	assert.Equal(t, types.GuardReasonNoPriceData, decision.Guard.Reason)
}

func TestSlippageGuardForcesExit(t *testing.T) {
	catalog := catalogOf(poolWithApy("pool-a", 400))
	source := healthyAdapters("pool-a")
	source["pool-a"].impact = 80 // over the 50 bps max

	h := newHarness(t, testRuntime(), catalog, source, &fakeStore{position: heldPosition(time.Hour)})

	decision := h.tick()

	assert.Equal(t, types.ActionExit, decision.Action)
	assert.Equal(t, types.GuardReasonSlippage, decision.Guard.Reason)
	assert.Nil(t, h.store.position)
}

func TestAprCliffForcesExit(t *testing.T) {
	catalog := catalogOf(poolWithApy("pool-a", 400))
	h := newHarness(t, testRuntime(), catalog, healthyAdapters("pool-a"), &fakeStore{position: heldPosition(time.Hour)})

	// Baseline from the previous tick: incentives were live, now gone.
	h.engine.history.Record(types.PoolSnapshot{
		Config:          catalog.PoolByID["pool-a"],
		IncentiveAprBps: 1000,
	})

	decision := h.tick()

	assert.Equal(t, types.ActionExit, decision.Action)
	assert.Equal(t, types.GuardReasonAprCliff, decision.Guard.Reason)
}

func TestFailingPoolExcludedForTickOnly(t *testing.T) {
	catalog := catalogOf(poolWithApy("pool-a", 400), poolWithApy("pool-b", 700))
	source := healthyAdapters("pool-a", "pool-b")
	source["pool-b"].fetchErr = errors.New("rpc timeout")

	h := newHarness(t, testRuntime(), catalog, source, &fakeStore{})

	decision := h.tick()

	assert.Equal(t, types.ActionEnter, decision.Action)
	assert.Equal(t, types.PoolID("pool-a"), decision.ToPool, "failing pool must not be a candidate")

	// Next tick the venue recovers and wins again.
	source["pool-b"].fetchErr = nil
	h.engine.mu.Lock()
	h.engine.lastRotation = time.Time{}
	h.engine.position = nil
	h.engine.mu.Unlock()
	h.store.position = nil

	decision = h.tick()
	assert.Equal(t, types.PoolID("pool-b"), decision.ToPool)
}

func TestDailyCapBlocksRotation(t *testing.T) {
	catalog := catalogOf(poolWithApy("pool-a", 400), poolWithApy("pool-b", 700))
	source := healthyAdapters("pool-a", "pool-b")
	source["pool-a"].cost = 1

	h := newHarness(t, testRuntime(), catalog, source,
		&fakeStore{position: heldPosition(48 * time.Hour), rotationCount: 4})

	decision := h.tick()

	assert.Equal(t, types.ActionHold, decision.Action)
	assert.Contains(t, decision.Reason, "cap")
}

func TestMinimumHoldBlocksRotation(t *testing.T) {
	catalog := catalogOf(poolWithApy("pool-a", 400), poolWithApy("pool-b", 700))
	source := healthyAdapters("pool-a", "pool-b")
	source["pool-a"].cost = 1

	h := newHarness(t, testRuntime(), catalog, source, &fakeStore{position: heldPosition(time.Minute)})

	decision := h.tick()

	assert.Equal(t, types.ActionHold, decision.Action)
	assert.Contains(t, decision.Reason, "hold")
}

func TestCooldownBlocksEntry(t *testing.T) {
	catalog := catalogOf(poolWithApy("pool-a", 400))
	h := newHarness(t, testRuntime(), catalog, healthyAdapters("pool-a"), &fakeStore{})
	h.engine.mu.Lock()
	h.engine.lastRotation = time.Now().Add(-time.Minute)
	h.engine.mu.Unlock()

	decision := h.tick()

	assert.Equal(t, types.ActionHold, decision.Action)
	assert.Contains(t, decision.Reason, "cooldown")
}

func TestTwoKeySafetyGate(t *testing.T) {
	t.Run("built but withheld when not armed", func(t *testing.T) {
		cfg := testRuntime()
		cfg.DryRun = false
		cfg.LiveArmed = false
		catalog := catalogOf(poolWithApy("pool-a", 400))
		h := newHarness(t, cfg, catalog, healthyAdapters("pool-a"), &fakeStore{})

		decision := h.tick()

		assert.Equal(t, types.ActionEnter, decision.Action)
		assert.False(t, decision.Executed)
		assert.Empty(t, h.executor.enters, "request must be withheld from the execution boundary")
	})

	t.Run("forwarded when both gates open", func(t *testing.T) {
		cfg := testRuntime()
		cfg.DryRun = false
		cfg.LiveArmed = true
		catalog := catalogOf(poolWithApy("pool-a", 400))
		h := newHarness(t, cfg, catalog, healthyAdapters("pool-a"), &fakeStore{})

		decision := h.tick()

		assert.Equal(t, types.ActionEnter, decision.Action)
		assert.True(t, decision.Executed)
		require.Len(t, h.executor.enters, 1)
		assert.Equal(t, types.PoolID("pool-a"), h.executor.enters[0].PoolID)
	})

	t.Run("execution failure leaves position unchanged", func(t *testing.T) {
		cfg := testRuntime()
		cfg.DryRun = false
		cfg.LiveArmed = true
		catalog := catalogOf(poolWithApy("pool-a", 400))
		h := newHarness(t, cfg, catalog, healthyAdapters("pool-a"), &fakeStore{})
		h.executor.err = errors.New("broadcast failed")

		decision := h.tick()

		assert.Equal(t, types.ActionEnter, decision.Action)
		assert.False(t, decision.Executed)
		assert.Nil(t, h.store.position)
	})
}

func TestManualExitRequest(t *testing.T) {
	catalog := catalogOf(poolWithApy("pool-a", 400))
	h := newHarness(t, testRuntime(), catalog, healthyAdapters("pool-a"), &fakeStore{position: heldPosition(time.Hour)})

	h.engine.RequestExit()
	decision := h.tick()

	assert.Equal(t, types.ActionExit, decision.Action)
	assert.Contains(t, decision.Reason, "manual")
	assert.Nil(t, h.store.position)

	// The request is one-shot.
	decision = h.tick()
	assert.NotEqual(t, types.ActionExit, decision.Action)
}

func TestManualRotateRequest(t *testing.T) {
	catalog := catalogOf(poolWithApy("pool-a", 700), poolWithApy("pool-b", 400))
	h := newHarness(t, testRuntime(), catalog, healthyAdapters("pool-a", "pool-b"),
		&fakeStore{position: heldPosition(time.Hour)})

	// pool-b yields less; a manual rotation bypasses the comparison.
	require.NoError(t, h.engine.RequestRotate("pool-b"))
	decision := h.tick()

	assert.Equal(t, types.ActionRotate, decision.Action)
	assert.Equal(t, types.PoolID("pool-b"), decision.ToPool)

	assert.Error(t, h.engine.RequestRotate("pool-x"), "unknown pool must be rejected")
}

func TestPausedEngineHolds(t *testing.T) {
	catalog := catalogOf(poolWithApy("pool-a", 400))
	h := newHarness(t, testRuntime(), catalog, healthyAdapters("pool-a"), &fakeStore{})

	h.engine.Pause()
	decision := h.tick()
	assert.Equal(t, types.ActionHold, decision.Action)
	assert.Contains(t, decision.Reason, "paused")
	assert.Nil(t, h.store.position)

	h.engine.Resume()
	decision = h.tick()
	assert.Equal(t, types.ActionEnter, decision.Action)
}

func TestRestoresPersistedPosition(t *testing.T) {
	catalog := catalogOf(poolWithApy("pool-a", 400))
	h := newHarness(t, testRuntime(), catalog, healthyAdapters("pool-a"), &fakeStore{position: heldPosition(time.Hour)})

	status := h.engine.Status()
	require.NotNil(t, status.Position)
	assert.Equal(t, types.PoolID("pool-a"), status.Position.PoolID)
}
