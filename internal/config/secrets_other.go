//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

func secretsFilePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, secretService, "secrets.json")
}

func secretHint(account string) string {
	return fmt.Sprintf(" or %q in %s", account, secretsFilePath())
}

// readSecret looks account up in the secrets file, a flat JSON object of
// account to value. The file must not be readable by other users.
func readSecret(account string) ([]byte, error) {
	path := secretsFilePath()
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("secrets file not available: %w", err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("refusing to read %s: permissions %v are too open", path, info.Mode().Perm())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}
	var secrets map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	val, ok := secrets[account]
	if !ok {
		return nil, fmt.Errorf("no secret for %q", account)
	}
	return []byte(val), nil
}
