package config

import "errors"

// MigrationConfig holds the settings for a one-shot migration readiness run.
// Separate from the live-loop Config: the monitor shares no state with the
// scan loop and is usually run from a different environment.
type MigrationConfig struct {
	ChainID  int64
	RPCURL   string
	OldVault string
	NewVault string

	// ExpectedDepositToken is the stable token contract the new vault should
	// accept. Empty skips the deposit-token comparison.
	ExpectedDepositToken string

	// Status endpoints of the two running bot instances. Either may be empty.
	OldServiceURL string
	NewServiceURL string
	StatusToken   string
}

// LoadMigration reads migration monitor configuration from the environment.
func LoadMigration() (*MigrationConfig, error) {
	cfg := &MigrationConfig{
		ChainID:              getEnvAsInt64("CHAIN_ID", 0),
		RPCURL:               getEnvWithDefault("NODE_RPC", ""),
		OldVault:             getEnvWithDefault("MIGRATION_OLD_VAULT", ""),
		NewVault:             getEnvWithDefault("MIGRATION_NEW_VAULT", ""),
		ExpectedDepositToken: getEnvWithDefault("MIGRATION_EXPECTED_DEPOSIT_TOKEN", ""),
		OldServiceURL:        getEnvWithDefault("MIGRATION_OLD_SERVICE_URL", ""),
		NewServiceURL:        getEnvWithDefault("MIGRATION_NEW_SERVICE_URL", ""),
		StatusToken:          getEnvWithDefault("BOT_STATUS_TOKEN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects incomplete monitor settings before any probe runs.
func (c *MigrationConfig) Validate() error {
	if c.RPCURL == "" {
		return errors.New("migration monitor requires NODE_RPC to be set")
	}
	if c.OldVault == "" {
		return errors.New("migration monitor requires MIGRATION_OLD_VAULT to be set")
	}
	if c.NewVault == "" {
		return errors.New("migration monitor requires MIGRATION_NEW_VAULT to be set")
	}
	return nil
}
