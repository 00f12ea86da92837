/*

Per-venue adapters. One implementation per protocol, selected by
PoolConfig.AdapterID. Disabled venues still resolve to an adapter — one
whose every method fails — so "present but disabled" and "absent" are the
same hard failure for callers and neither can be silently skipped past.

*/

package adapters

import (
	"context"
	"errors"
	"fmt"

	"github.com/stablerotor/rotor/internal/chain"
	"github.com/stablerotor/rotor/internal/types"
)

var (
	ErrAdapterDisabled = errors.New("adapter disabled for this venue")
	ErrUnknownAdapter  = errors.New("no adapter registered for id")
)

// Adapter is the capability set every venue implementation provides.
// FetchPoolState performs on-chain reads; the estimate and build methods are
// pure transformations over already-fetched state.
type Adapter interface {
	FetchPoolState(ctx context.Context, pool types.PoolConfig) (types.PoolOnChainState, error)
	EstimatePriceImpactBps(state types.PoolOnChainState, tradeSizeUsd float64) int64
	EstimateRotationCostBps(pool types.PoolConfig, state types.PoolOnChainState, tradeSizeUsd float64) int64
	BuildEnterRequest(intent types.RequestIntent) (types.VaultEnterRequest, error)
	BuildExitRequest(intent types.RequestIntent) (types.VaultExitRequest, error)
}

// Registry resolves pool configs to adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds the closed set of supported adapters.
func NewRegistry(client *chain.Client) *Registry {
	return &Registry{
		adapters: map[string]Adapter{
			"lending_v1": newLendingAdapter(client),
		},
	}
}

// ForPool resolves the adapter for a pool. A disabled pool resolves to the
// disabled adapter rather than an error here; its methods fail uniformly.
func (r *Registry) ForPool(pool types.PoolConfig) (Adapter, error) {
	if !pool.Enabled {
		return disabledAdapter{poolID: pool.ID}, nil
	}
	adapter, ok := r.adapters[pool.AdapterID]
	if !ok {
		return nil, fmt.Errorf("%w: %q (pool %s)", ErrUnknownAdapter, pool.AdapterID, pool.ID)
	}
	return adapter, nil
}

// disabledAdapter implements Adapter for venues that are configured but not
// enabled. Every method fails with a clear error; callers must not skip to
// a different venue on its behalf.
type disabledAdapter struct {
	poolID types.PoolID
}

func (d disabledAdapter) FetchPoolState(context.Context, types.PoolConfig) (types.PoolOnChainState, error) {
	return types.PoolOnChainState{}, fmt.Errorf("%w: pool %s", ErrAdapterDisabled, d.poolID)
}

func (d disabledAdapter) EstimatePriceImpactBps(types.PoolOnChainState, float64) int64 {
	return 0
}

func (d disabledAdapter) EstimateRotationCostBps(types.PoolConfig, types.PoolOnChainState, float64) int64 {
	return 0
}

func (d disabledAdapter) BuildEnterRequest(types.RequestIntent) (types.VaultEnterRequest, error) {
	return types.VaultEnterRequest{}, fmt.Errorf("%w: pool %s", ErrAdapterDisabled, d.poolID)
}

func (d disabledAdapter) BuildExitRequest(types.RequestIntent) (types.VaultExitRequest, error) {
	return types.VaultExitRequest{}, fmt.Errorf("%w: pool %s", ErrAdapterDisabled, d.poolID)
}
