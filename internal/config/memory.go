package config

import "time"

// MemoryConfig configures the Memory Fabric's recall weights, caps, and
// decay schedule.
type MemoryConfig struct {
	KRecent   int `yaml:"k_recent"`
	KSemantic int `yaml:"k_semantic"`
	KPerHead  int `yaml:"k_per_head"`

	WeightSimilarity float64 `yaml:"weight_similarity"`
	WeightRecency    float64 `yaml:"weight_recency"`
	WeightSalience   float64 `yaml:"weight_salience"`

	CrossProjectDistanceThreshold float64 `yaml:"cross_project_distance_threshold"`

	DecayHorizonHours   int     `yaml:"decay_horizon_hours"`
	DecayStep           float64 `yaml:"decay_step"`
	ArchiveConfidenceFloor float64 `yaml:"archive_confidence_floor"`

	RollingSummaryEvery int `yaml:"rolling_summary_every"` // 10
	BatchSummaryEvery   int `yaml:"batch_summary_every"`   // 100
}

// DecayHorizon returns DecayHorizonHours as a time.Duration.
func (c MemoryConfig) DecayHorizon() time.Duration {
	return time.Duration(c.DecayHorizonHours) * time.Hour
}

func loadMemoryConfig() MemoryConfig {
	return MemoryConfig{
		KRecent:                       getenvInt("MIRA_MEMORY_K_RECENT", 10),
		KSemantic:                     getenvInt("MIRA_MEMORY_K_SEMANTIC", 8),
		KPerHead:                      getenvInt("MIRA_MEMORY_K_PER_HEAD", 12),
		WeightSimilarity:              getenvFloat("MIRA_MEMORY_WEIGHT_SIM", 0.5),
		WeightRecency:                 getenvFloat("MIRA_MEMORY_WEIGHT_RECENCY", 0.3),
		WeightSalience:                getenvFloat("MIRA_MEMORY_WEIGHT_SALIENCE", 0.2),
		CrossProjectDistanceThreshold: getenvFloat("MIRA_MEMORY_CROSS_PROJECT_DISTANCE", 0.25),
		DecayHorizonHours:             getenvInt("MIRA_MEMORY_DECAY_HORIZON_HOURS", 24*14),
		DecayStep:                     getenvFloat("MIRA_MEMORY_DECAY_STEP", 0.05),
		ArchiveConfidenceFloor:        getenvFloat("MIRA_MEMORY_ARCHIVE_FLOOR", 0.1),
		RollingSummaryEvery:           getenvInt("MIRA_MEMORY_ROLLING_SUMMARY_EVERY", 10),
		BatchSummaryEvery:             getenvInt("MIRA_MEMORY_BATCH_SUMMARY_EVERY", 100),
	}
}
