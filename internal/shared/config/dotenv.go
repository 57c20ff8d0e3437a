package config

import (
	"os"
	"strings"
)

// loadEnvFiles applies KEY=VALUE pairs from the given files to the process
// environment. Variables already set in the real environment win over file
// values, so exported overrides survive a stale .env. Missing files and
// unparseable lines are skipped; this is a dev convenience, not a config
// source of record.
func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			line = strings.TrimPrefix(line, "export ")
			key, val, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if _, exists := os.LookupEnv(key); exists {
				continue
			}
			val = strings.TrimSpace(val)
			val = strings.Trim(val, `"'`)
			os.Setenv(key, val)
		}
	}
}
