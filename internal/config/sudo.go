package config

import "time"

// SudoConfig configures the sudo whitelist / approval gate.
type SudoConfig struct {
	WhitelistFile    string        `yaml:"whitelist_file"`
	ApprovalExpiry   time.Duration `yaml:"approval_expiry"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
}

func loadSudoConfig() SudoConfig {
	return SudoConfig{
		WhitelistFile:  getenv("MIRA_SUDO_WHITELIST_FILE", ""),
		ApprovalExpiry: time.Duration(getenvInt("MIRA_SUDO_APPROVAL_EXPIRY_SECS", 300)) * time.Second,
		SweepInterval:  time.Duration(getenvInt("MIRA_SUDO_SWEEP_INTERVAL_SECS", 30)) * time.Second,
	}
}
