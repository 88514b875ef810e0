package config

import "time"

// SchedulerConfig configures the background cognition scheduler's worker
// periods and timeouts.
type SchedulerConfig struct {
	EmbeddingBatchPeriod time.Duration `yaml:"embedding_batch_period"`
	CodeHealthPeriod     time.Duration `yaml:"code_health_period"`
	OutcomeScanPeriod    time.Duration `yaml:"outcome_scan_period"`
	PonderingPeriod      time.Duration `yaml:"pondering_period"`
	BriefingsPeriod      time.Duration `yaml:"briefings_period"`
	SessionCleanupPeriod time.Duration `yaml:"session_cleanup_period"`
	DecayPeriod          time.Duration `yaml:"decay_period"`

	WorkerTimeout     time.Duration `yaml:"worker_timeout"`
	PonderingCooldown time.Duration `yaml:"pondering_cooldown"`
	SessionIdleHours  int           `yaml:"session_idle_hours"`
	EmbeddingBatchMax int           `yaml:"embedding_batch_max"`
	OutcomeWindow     time.Duration `yaml:"outcome_window"`
}

func loadSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		EmbeddingBatchPeriod: time.Duration(getenvInt("MIRA_SCHED_EMBED_PERIOD_SECS", 15)) * time.Second,
		CodeHealthPeriod:     time.Duration(getenvInt("MIRA_SCHED_HEALTH_PERIOD_SECS", 300)) * time.Second,
		OutcomeScanPeriod:    time.Duration(getenvInt("MIRA_SCHED_OUTCOME_PERIOD_SECS", 600)) * time.Second,
		PonderingPeriod:      time.Duration(getenvInt("MIRA_SCHED_PONDER_PERIOD_SECS", 3600)) * time.Second,
		BriefingsPeriod:      time.Duration(getenvInt("MIRA_SCHED_BRIEF_PERIOD_SECS", 3600)) * time.Second,
		SessionCleanupPeriod: time.Duration(getenvInt("MIRA_SCHED_CLEANUP_PERIOD_SECS", 600)) * time.Second,
		DecayPeriod:          time.Duration(getenvInt("MIRA_SCHED_DECAY_PERIOD_SECS", 3600)) * time.Second,
		WorkerTimeout:        time.Duration(getenvInt("MIRA_SCHED_WORKER_TIMEOUT_SECS", 120)) * time.Second,
		PonderingCooldown:    time.Duration(getenvInt("MIRA_SCHED_PONDER_COOLDOWN_HOURS", 6)) * time.Hour,
		SessionIdleHours:     getenvInt("MIRA_SCHED_SESSION_IDLE_HOURS", 12),
		EmbeddingBatchMax:    getenvInt("MIRA_SCHED_EMBED_BATCH_MAX", 1000),
		OutcomeWindow:        time.Duration(getenvInt("MIRA_SCHED_OUTCOME_WINDOW_HOURS", 72)) * time.Hour,
	}
}
