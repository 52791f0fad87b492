//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const defaultsDomain = "com.siampass.app"

// defaultsBackend keeps settings in the user's defaults database, so they
// can also be edited with `defaults write com.siampass.app <key> ...`.
type defaultsBackend struct {
	domain string
}

func newPlatformBackend() Backend {
	return &defaultsBackend{domain: defaultsDomain}
}

func (b *defaultsBackend) read(key string) (string, bool, error) {
	out, err := exec.Command("defaults", "read", b.domain, key).CombinedOutput()
	s := strings.TrimSpace(string(out))
	if err != nil {
		// Exit status 1 means the domain or key does not exist.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", false, nil
		}
		return "", false, fmt.Errorf("defaults read %s: %w: %s", key, err, s)
	}
	return s, true, nil
}

func (b *defaultsBackend) write(key, typeFlag, val string) error {
	out, err := exec.Command("defaults", "write", b.domain, key, typeFlag, val).CombinedOutput()
	if err != nil {
		return fmt.Errorf("defaults write %s: %w: %s", key, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (b *defaultsBackend) GetString(key string) (string, bool, error) {
	return b.read(key)
}

func (b *defaultsBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.read(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("%s: not an integer: %w", key, err)
	}
	return i, true, nil
}

// GetBool accepts both `-bool` values, which defaults prints as 1 or 0, and
// strings such as "true".
func (b *defaultsBackend) GetBool(key string) (bool, bool, error) {
	s, ok, err := b.read(key)
	if !ok || err != nil {
		return false, ok, err
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, true, fmt.Errorf("%s: not a boolean: %w", key, err)
	}
	return v, true, nil
}

func (b *defaultsBackend) SetString(key, val string) error {
	return b.write(key, "-string", val)
}

func (b *defaultsBackend) SetInt(key string, val int) error {
	return b.write(key, "-int", strconv.Itoa(val))
}

func (b *defaultsBackend) SetBool(key string, val bool) error {
	return b.write(key, "-bool", strconv.FormatBool(val))
}

func (b *defaultsBackend) Delete(key string) error {
	if _, ok, err := b.read(key); err != nil || !ok {
		return err
	}
	return exec.Command("defaults", "delete", b.domain, key).Run()
}
