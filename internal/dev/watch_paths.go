package dev

import (
	"path/filepath"

	"github.com/shipsite/shipsite/internal/config"
)

// WatchPaths returns the directories watched for a project: the build source
// plus serve.watch entries, without duplicates.
func WatchPaths(cfg *config.Config) []string {
	paths := []string{cfg.SourcePath()}
	for _, p := range cfg.Serve.Watch {
		paths = append(paths, resolvePath(cfg.Dir(), p))
	}

	unique := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		clean := filepath.Clean(p)
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		unique = append(unique, clean)
	}
	return unique
}

func resolvePath(projectDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(projectDir, p)
}
