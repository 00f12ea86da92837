package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stablerotor/rotor/internal/config"
	"github.com/stablerotor/rotor/internal/types"
)

func testMonitor() *Monitor {
	cfg := &config.MigrationConfig{
		RPCURL:               "http://localhost:8545",
		OldVault:             "0x1111111111111111111111111111111111111111",
		NewVault:             "0x2222222222222222222222222222222222222222",
		ExpectedDepositToken: "0x3333333333333333333333333333333333333333",
	}
	return NewMonitor(cfg, nil, &config.PoolCatalog{})
}

func readyReport() *types.MigrationReport {
	return &types.MigrationReport{
		OldVault: types.VaultProbe{
			LPBalances: map[types.PoolID]float64{"aprio-usdc": 0},
		},
		NewVault: types.VaultProbe{
			SupportsUserFlow: true,
			DepositToken:     "0x3333333333333333333333333333333333333333",
		},
		OldService: types.ServiceProbe{Configured: true, Reachable: true},
		NewService: types.ServiceProbe{Configured: true, Reachable: true, Healthy: true, Ready: true},
	}
}

func checkByID(t *testing.T, checks []types.CheckRow, id string) types.CheckRow {
	t.Helper()
	for _, c := range checks {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("check %s not found", id)
	return types.CheckRow{}
}

func TestAllChecksPassWhenReady(t *testing.T) {
	m := testMonitor()
	report := readyReport()
	report.Checks = m.buildChecks(report)

	require.Len(t, report.Checks, 5)
	for _, c := range report.Checks {
		assert.Equal(t, types.CheckPass, c.Status, "check %s: %s", c.ID, c.Detail)
	}
	assert.False(t, report.Failed())
}

func TestLpExposureFailsCutover(t *testing.T) {
	m := testMonitor()
	report := readyReport()
	report.OldVault.HasLpExposure = true
	report.OldVault.LPBalances["aprio-usdc"] = 1500.5
	report.Checks = m.buildChecks(report)

	check := checkByID(t, report.Checks, CHECK_OLD_VAULT_LP_DRAINED)
	assert.Equal(t, types.CheckFail, check.Status)
	assert.Contains(t, check.Detail, "aprio-usdc")
	assert.True(t, report.Failed())
}

func TestMissingUserFlowFailsCutover(t *testing.T) {
	m := testMonitor()
	report := readyReport()
	report.NewVault.SupportsUserFlow = false
	report.Checks = m.buildChecks(report)

	check := checkByID(t, report.Checks, CHECK_NEW_VAULT_USER_FLOW)
	assert.Equal(t, types.CheckFail, check.Status)
	assert.True(t, report.Failed())
}

func TestDepositTokenMismatchOnlyWarns(t *testing.T) {
	m := testMonitor()
	report := readyReport()
	report.NewVault.DepositToken = "0x9999999999999999999999999999999999999999"
	report.Checks = m.buildChecks(report)

	check := checkByID(t, report.Checks, CHECK_NEW_VAULT_DEPOSIT_TOKEN)
	assert.Equal(t, types.CheckWarn, check.Status)
	assert.False(t, report.Failed(), "WARNs never fail the run")
}

func TestDepositTokenComparisonIsCaseInsensitive(t *testing.T) {
	m := testMonitor()
	report := readyReport()
	report.NewVault.DepositToken = "0x3333333333333333333333333333333333333333"
	m.cfg.ExpectedDepositToken = "0x3333333333333333333333333333333333333333"
	report.Checks = m.buildChecks(report)

	check := checkByID(t, report.Checks, CHECK_NEW_VAULT_DEPOSIT_TOKEN)
	assert.Equal(t, types.CheckPass, check.Status)
}

func TestNewServiceNotReadyFailsCutover(t *testing.T) {
	m := testMonitor()
	report := readyReport()
	report.NewService.Ready = false
	report.Checks = m.buildChecks(report)

	check := checkByID(t, report.Checks, CHECK_NEW_SERVICE_READY)
	assert.Equal(t, types.CheckFail, check.Status)
	assert.True(t, report.Failed())
}

func TestNewServiceUnconfiguredOnlyWarns(t *testing.T) {
	m := testMonitor()
	report := readyReport()
	report.NewService = types.ServiceProbe{Configured: false}
	report.Checks = m.buildChecks(report)

	check := checkByID(t, report.Checks, CHECK_NEW_SERVICE_READY)
	assert.Equal(t, types.CheckWarn, check.Status)
	assert.False(t, report.Failed())
}

func TestOldServiceUnreachableNeverFails(t *testing.T) {
	m := testMonitor()
	report := readyReport()
	report.OldService = types.ServiceProbe{Configured: true, Reachable: false, Reason: "connection refused"}
	report.Checks = m.buildChecks(report)

	check := checkByID(t, report.Checks, CHECK_OLD_SERVICE_REACHABLE)
	assert.Equal(t, types.CheckWarn, check.Status)
	assert.False(t, report.Failed(), "rollback signal must never block cutover")
}
