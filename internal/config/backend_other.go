//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// fileBackend keeps settings as one flat JSON object under
// $XDG_CONFIG_HOME/siampass. Every write rewrites the whole file.
type fileBackend struct {
	path string
	data map[string]any
}

func newPlatformBackend() Backend {
	b := &fileBackend{path: configFilePath(), data: make(map[string]any)}
	b.load()
	return b
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "siampass", "config.json")
}

// load leaves the backend empty when the file is missing or unreadable, so
// a broken file falls back to defaults instead of blocking startup.
func (b *fileBackend) load() {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return
	}
	if err == nil {
		err = json.Unmarshal(data, &b.data)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] ignoring config file %s: %v\n", b.path, err)
		b.data = make(map[string]any)
	}
}

func (b *fileBackend) save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return os.Rename(tmp, b.path)
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	if s, isStr := v.(string); isStr {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case float64:
		if val != math.Trunc(val) || val < math.MinInt || val > math.MaxInt {
			return 0, true, fmt.Errorf("%s: %v is not an integer", key, val)
		}
		return int(val), true, nil
	case string:
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, true, fmt.Errorf("%s: not an integer: %w", key, err)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("%s: unexpected %T", key, v)
	}
}

// GetBool also accepts quoted booleans so hand-edited files keep working.
func (b *fileBackend) GetBool(key string) (bool, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return false, false, nil
	}
	switch val := v.(type) {
	case bool:
		return val, true, nil
	case string:
		bv, err := strconv.ParseBool(val)
		if err != nil {
			return false, true, fmt.Errorf("%s: not a boolean: %w", key, err)
		}
		return bv, true, nil
	default:
		return false, true, fmt.Errorf("%s: unexpected %T", key, v)
	}
}

func (b *fileBackend) set(key string, val any) error {
	b.data[key] = val
	return b.save()
}

func (b *fileBackend) SetString(key, val string) error    { return b.set(key, val) }
func (b *fileBackend) SetInt(key string, val int) error   { return b.set(key, val) }
func (b *fileBackend) SetBool(key string, val bool) error { return b.set(key, val) }

func (b *fileBackend) Delete(key string) error {
	if _, ok := b.data[key]; !ok {
		return nil
	}
	delete(b.data, key)
	return b.save()
}
