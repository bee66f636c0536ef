package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadEnvFile reads KEY=VALUE lines into the process environment. A missing
// file is a no-op so a plain deployment without .env files still starts.
// Variables already present in the environment win over file values.
func LoadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open env file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		done := err != nil
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			if key, value, ok := strings.Cut(line, "="); ok {
				key = strings.TrimSpace(key)
				value = strings.TrimSpace(value)
				value = strings.Trim(value, `"'`)
				if key != "" {
					if _, exists := os.LookupEnv(key); !exists {
						_ = os.Setenv(key, value)
					}
				}
			}
		}
		if done {
			return nil
		}
	}
}
