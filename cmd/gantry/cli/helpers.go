package cli

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gantrydb/gantry/internal/store"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag,
// GANTRY_DATA_DIR env var, or ~/.gantry as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("GANTRY_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.gantry"
}

// openStore opens the registry store the server uses, so CLI commands
// operate on the same database.
func openStore() (*store.Store, error) {
	return store.Open(store.Options{DataDir: resolveDataDir()})
}

// --- PID file management ---

func pidFilePath() string {
	return filepath.Join(resolveDataDir(), "gantry.pid")
}

func writePID(pid int) error {
	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(pid)), 0644)
}

func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID() {
	os.Remove(pidFilePath())
}

func auditLogPath() string {
	return filepath.Join(resolveDataDir(), "audit.log")
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
