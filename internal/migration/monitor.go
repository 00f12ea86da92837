/*

Blue/green vault cutover readiness monitor. A one-shot, read-only tool: it
probes the old and new vault deployments and the two running bot instances
in parallel, then distills the snapshots into an ordered PASS/WARN/FAIL
checklist. It shares no state with the live decision loop.

*/

package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stablerotor/rotor/internal/botclient"
	"github.com/stablerotor/rotor/internal/chain"
	"github.com/stablerotor/rotor/internal/config"
	"github.com/stablerotor/rotor/internal/logger"
	"github.com/stablerotor/rotor/internal/types"
)

// Check ids, in report order.
const (
	CHECK_OLD_VAULT_LP_DRAINED    = "old_vault.lp_drained"
	CHECK_NEW_VAULT_USER_FLOW     = "new_vault.user_flow"
	CHECK_NEW_VAULT_DEPOSIT_TOKEN = "new_vault.deposit_token"
	CHECK_NEW_SERVICE_READY       = "railway.new_service_ready"
	CHECK_OLD_SERVICE_REACHABLE   = "railway.old_service_reachable"
)

// Monitor runs the readiness probes and assembles the report.
type Monitor struct {
	logger  zerolog.Logger
	cfg     *config.MigrationConfig
	client  *chain.Client
	catalog *config.PoolCatalog
}

// NewMonitor creates a Monitor for one readiness run.
func NewMonitor(cfg *config.MigrationConfig, client *chain.Client, catalog *config.PoolCatalog) *Monitor {
	return &Monitor{
		logger:  logger.GetForComponent("migration_monitor"),
		cfg:     cfg,
		client:  client,
		catalog: catalog,
	}
}

// Run probes both vaults and both services concurrently and returns the
// finished report. Probe failures become report content, not errors; the
// report always completes.
func (m *Monitor) Run(ctx context.Context) *types.MigrationReport {
	report := &types.MigrationReport{
		GeneratedAt: time.Now().UTC(),
		ChainID:     m.cfg.ChainID,
		RPCURL:      m.cfg.RPCURL,
	}

	g, probeCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		report.OldVault = m.probeVault(probeCtx, m.cfg.OldVault)
		return nil
	})
	g.Go(func() error {
		report.NewVault = m.probeVault(probeCtx, m.cfg.NewVault)
		return nil
	})
	g.Go(func() error {
		report.OldService = m.probeService(probeCtx, m.cfg.OldServiceURL)
		return nil
	})
	g.Go(func() error {
		report.NewService = m.probeService(probeCtx, m.cfg.NewServiceURL)
		return nil
	})
	_ = g.Wait()

	report.Checks = m.buildChecks(report)
	return report
}

// probeVault reads one vault's balances and new-style interface support.
// ErrUnsupported from the new-style functions is expected on the old vault
// and recorded as supportsUserFlow=false, never as a probe error.
func (m *Monitor) probeVault(ctx context.Context, address string) types.VaultProbe {
	probe := types.VaultProbe{
		Address:    address,
		LPBalances: make(map[types.PoolID]float64),
	}

	if m.cfg.ExpectedDepositToken != "" {
		balance, err := m.client.TokenBalance(ctx, m.cfg.ExpectedDepositToken, address)
		if err != nil {
			probe.ProbeError = fmt.Sprintf("stable balance read failed: %v", err)
			m.logger.Warn().Err(err).Str("vault", address).Msg("Failed to read vault stable balance")
		} else {
			probe.StableBalance, _ = balance.Float64()
		}
	}

	for _, pool := range m.catalog.Pools {
		if pool.LPToken == "" {
			continue
		}
		balance, err := m.client.TokenBalance(ctx, pool.LPToken, address)
		if err != nil {
			probe.ProbeError = appendProbeError(probe.ProbeError,
				fmt.Sprintf("lp balance read failed for pool %s: %v", pool.ID, err))
			m.logger.Warn().Err(err).Str("vault", address).Str("poolId", string(pool.ID)).Msg("Failed to read LP balance")
			continue
		}
		value, _ := balance.Float64()
		probe.LPBalances[pool.ID] = value
		if value > 0 {
			probe.HasLpExposure = true
		}
	}

	if open, err := m.client.HasOpenLpPosition(ctx, address); err == nil && open {
		probe.HasLpExposure = true
	}

	depositToken, err := m.client.DepositToken(ctx, address)
	switch {
	case err == nil:
		probe.SupportsUserFlow = true
		probe.DepositToken = depositToken
	case errors.Is(err, chain.ErrUnsupported):
		probe.SupportsUserFlow = false
	default:
		probe.ProbeError = appendProbeError(probe.ProbeError,
			fmt.Sprintf("depositToken read failed: %v", err))
	}

	if probe.SupportsUserFlow {
		shares, err := m.client.TotalUserShares(ctx, address, 18)
		if err != nil {
			m.logger.Warn().Err(err).Str("vault", address).Msg("Failed to read totalUserShares")
		} else {
			probe.TotalUserShares, _ = shares.Float64()
		}
	}

	return probe
}

// probeService polls one bot instance's /state endpoint.
func (m *Monitor) probeService(ctx context.Context, url string) types.ServiceProbe {
	probe := types.ServiceProbe{URL: url, Configured: url != ""}
	if !probe.Configured {
		return probe
	}

	client := botclient.NewClient(url, m.cfg.StatusToken)
	botState, statusCode, err := client.FetchState(ctx)
	probe.StatusCode = statusCode
	if err != nil {
		probe.Reason = err.Error()
		m.logger.Warn().Err(err).Str("url", url).Msg("Service probe failed")
		return probe
	}

	probe.Reachable = true
	probe.Healthy = botState.Healthy
	probe.Ready = botState.Ready
	probe.Reason = botState.Reason
	probe.Snapshots = botState.State.Snapshots
	probe.Decisions = botState.State.Decisions
	return probe
}

// buildChecks distills the raw probes into the ordered checklist.
func (m *Monitor) buildChecks(report *types.MigrationReport) []types.CheckRow {
	checks := make([]types.CheckRow, 0, 5)

	// Old vault must be fully out of LP positions before cutover.
	if report.OldVault.HasLpExposure {
		checks = append(checks, types.CheckRow{
			ID:     CHECK_OLD_VAULT_LP_DRAINED,
			Status: types.CheckFail,
			Detail: fmt.Sprintf("old vault still holds LP exposure: %s", nonzeroBalances(report.OldVault.LPBalances)),
		})
	} else {
		checks = append(checks, types.CheckRow{
			ID:     CHECK_OLD_VAULT_LP_DRAINED,
			Status: types.CheckPass,
			Detail: "old vault holds no LP positions",
		})
	}

	// New vault must expose the user deposit/withdraw interface.
	if report.NewVault.SupportsUserFlow {
		checks = append(checks, types.CheckRow{
			ID:     CHECK_NEW_VAULT_USER_FLOW,
			Status: types.CheckPass,
			Detail: "new vault supports the user-flow interface",
		})
	} else {
		checks = append(checks, types.CheckRow{
			ID:     CHECK_NEW_VAULT_USER_FLOW,
			Status: types.CheckFail,
			Detail: "new vault does not expose depositToken/totalUserShares",
		})
	}

	// Deposit token mismatch is suspicious but not a hard blocker.
	switch {
	case m.cfg.ExpectedDepositToken == "":
		checks = append(checks, types.CheckRow{
			ID:     CHECK_NEW_VAULT_DEPOSIT_TOKEN,
			Status: types.CheckWarn,
			Detail: "no expected deposit token configured, comparison skipped",
		})
	case strings.EqualFold(report.NewVault.DepositToken, m.cfg.ExpectedDepositToken):
		checks = append(checks, types.CheckRow{
			ID:     CHECK_NEW_VAULT_DEPOSIT_TOKEN,
			Status: types.CheckPass,
			Detail: fmt.Sprintf("deposit token matches expected %s", m.cfg.ExpectedDepositToken),
		})
	default:
		checks = append(checks, types.CheckRow{
			ID:     CHECK_NEW_VAULT_DEPOSIT_TOKEN,
			Status: types.CheckWarn,
			Detail: fmt.Sprintf("deposit token %s does not match expected %s",
				report.NewVault.DepositToken, m.cfg.ExpectedDepositToken),
		})
	}

	// The new service must be fully up before traffic moves to it.
	switch {
	case !report.NewService.Configured:
		checks = append(checks, types.CheckRow{
			ID:     CHECK_NEW_SERVICE_READY,
			Status: types.CheckWarn,
			Detail: "new service endpoint not configured",
		})
	case report.NewService.Reachable && report.NewService.Healthy && report.NewService.Ready:
		checks = append(checks, types.CheckRow{
			ID:     CHECK_NEW_SERVICE_READY,
			Status: types.CheckPass,
			Detail: fmt.Sprintf("new service healthy and ready (%d decisions)", report.NewService.Decisions),
		})
	default:
		checks = append(checks, types.CheckRow{
			ID:     CHECK_NEW_SERVICE_READY,
			Status: types.CheckFail,
			Detail: fmt.Sprintf("new service not ready: reachable=%t healthy=%t ready=%t reason=%q",
				report.NewService.Reachable, report.NewService.Healthy, report.NewService.Ready, report.NewService.Reason),
		})
	}

	// Old service reachability is a rollback-readiness signal, never a
	// cutover blocker.
	switch {
	case !report.OldService.Configured:
		checks = append(checks, types.CheckRow{
			ID:     CHECK_OLD_SERVICE_REACHABLE,
			Status: types.CheckWarn,
			Detail: "old service endpoint not configured",
		})
	case report.OldService.Reachable:
		checks = append(checks, types.CheckRow{
			ID:     CHECK_OLD_SERVICE_REACHABLE,
			Status: types.CheckPass,
			Detail: "old service reachable for rollback",
		})
	default:
		checks = append(checks, types.CheckRow{
			ID:     CHECK_OLD_SERVICE_REACHABLE,
			Status: types.CheckWarn,
			Detail: fmt.Sprintf("old service unreachable: %s", report.OldService.Reason),
		})
	}

	return checks
}

func nonzeroBalances(balances map[types.PoolID]float64) string {
	var parts []string
	for poolID, balance := range balances {
		if balance > 0 {
			parts = append(parts, fmt.Sprintf("%s=%g", poolID, balance))
		}
	}
	if len(parts) == 0 {
		return "hasOpenLpPosition=true"
	}
	return strings.Join(parts, ", ")
}

func appendProbeError(existing, added string) string {
	if existing == "" {
		return added
	}
	return existing + "; " + added
}
