package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanupTemps removes work directories and staged sources older than maxAge
// from dir (os.TempDir when empty). Requests always remove their own; this
// catches what a killed process left behind.
func CleanupTemps(dir string, maxAge time.Duration) int {
	if dir == "" {
		dir = os.TempDir()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "pdfdocx-") && !strings.HasPrefix(name, "pdfsrc-") {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if os.RemoveAll(filepath.Join(dir, name)) == nil {
			removed++
		}
	}
	return removed
}
