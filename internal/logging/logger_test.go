package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, workspace string, cfg loggingConfig) {
	t.Helper()
	configDir := filepath.Join(workspace, ".mira")
	require.NoError(t, os.MkdirAll(configDir, 0755))

	raw, err := json.Marshal(configFile{Logging: cfg})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.json"), raw, 0644))
}

func resetLoggingState() {
	CloseAll()
	configLoaded = false
	cfg = loggingConfig{}
}

func TestInitializeDisabledByDefault(t *testing.T) {
	defer resetLoggingState()
	tempDir := t.TempDir()

	require.NoError(t, Initialize(tempDir))
	require.False(t, IsDebugMode())

	// No categories are enabled, no files are created.
	Get(CategoryOrchestrator).Info("should be a no-op")
	_, err := os.Stat(filepath.Join(tempDir, ".mira", "logs"))
	require.True(t, os.IsNotExist(err))
}

func TestInitializeWritesPerCategoryFiles(t *testing.T) {
	defer resetLoggingState()
	tempDir := t.TempDir()
	writeTestConfig(t, tempDir, loggingConfig{DebugMode: true, Level: "debug"})

	require.NoError(t, Initialize(tempDir))
	require.True(t, IsDebugMode())

	Get(CategoryMemory).Info("recall served %d candidates", 3)

	entries, err := os.ReadDir(filepath.Join(tempDir, ".mira", "logs"))
	require.NoError(t, err)

	var found bool
	for _, e := range entries {
		if strings.Contains(e.Name(), string(CategoryMemory)) {
			found = true
		}
	}
	require.True(t, found, "expected a memory category log file")
}

func TestCategoryFilterDisablesOneCategory(t *testing.T) {
	defer resetLoggingState()
	tempDir := t.TempDir()
	writeTestConfig(t, tempDir, loggingConfig{
		DebugMode:  true,
		Level:      "debug",
		Categories: map[string]bool{string(CategoryBudget): false},
	})

	require.NoError(t, Initialize(tempDir))
	require.False(t, isCategoryEnabled(CategoryBudget))
	require.True(t, isCategoryEnabled(CategoryMemory))
}

func TestLevelFilteringSuppressesDebug(t *testing.T) {
	defer resetLoggingState()
	tempDir := t.TempDir()
	writeTestConfig(t, tempDir, loggingConfig{DebugMode: true, Level: "warn"})
	require.NoError(t, Initialize(tempDir))

	l := Get(CategorySudo)
	l.Debug("this should be suppressed")
	l.Warn("this should appear")

	data, err := os.ReadFile(firstLogFile(t, tempDir, CategorySudo))
	require.NoError(t, err)
	require.NotContains(t, string(data), "suppressed")
	require.Contains(t, string(data), "this should appear")
}

func firstLogFile(t *testing.T, workspace string, category Category) string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(workspace, ".mira", "logs"))
	require.NoError(t, err)
	for _, e := range entries {
		if strings.Contains(e.Name(), string(category)) {
			return filepath.Join(workspace, ".mira", "logs", e.Name())
		}
	}
	t.Fatalf("no log file found for category %s", category)
	return ""
}
