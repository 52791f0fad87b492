package config

import (
	"fmt"
	"strconv"
)

// KeyInfo is one row of `siampass config show`.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
	Secret bool
}

// ShowAll lists every key with its effective value. Secrets only report
// whether they are set.
func ShowAll(cfg Config) []KeyInfo {
	result := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		ki := KeyInfo{Key: s.key, EnvVar: s.env, Secret: s.secret}
		switch {
		case !s.secret:
			ki.Value = fmt.Sprint(s.extract(cfg))
		case s.extract(cfg) != "":
			ki.Value = "(set)"
		default:
			ki.Value = "(not set)"
		}
		result = append(result, ki)
	}
	return result
}

// SetKey persists a non-secret key.
func SetKey(key, value string) error {
	return setKeyIn(newPlatformBackend(), key, value)
}

// UnsetKey removes a persisted key so its default applies again.
func UnsetKey(key string) error {
	return unsetKeyIn(newPlatformBackend(), key)
}

func lookupSettable(key string) (keySpec, error) {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			return keySpec{}, fmt.Errorf("%s is a secret: set %s%s", key, s.env, secretHint(s.account))
		}
		return s, nil
	}
	return keySpec{}, fmt.Errorf("unknown config key %q", key)
}

func setKeyIn(b Backend, key, value string) error {
	s, err := lookupSettable(key)
	if err != nil {
		return err
	}
	switch s.typ {
	case kInt:
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s wants an integer: %w", key, err)
		}
		return b.SetInt(key, i)
	case kBool:
		bv, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s wants true or false: %w", key, err)
		}
		return b.SetBool(key, bv)
	default:
		return b.SetString(key, value)
	}
}

func unsetKeyIn(b Backend, key string) error {
	if _, err := lookupSettable(key); err != nil {
		return err
	}
	return b.Delete(key)
}

// ValidKeys returns the keys `config set` accepts.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
