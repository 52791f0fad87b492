package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	account string // secret store account name, secrets only
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "SIAMPASS_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "SIAMPASS_SERVER_TOKEN",
		secret: true, account: "server_token",
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "guide.provider", typ: kString, env: "SIAMPASS_GUIDE_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Guide.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Guide.Provider },
	},
	{
		key: "guide.greeting", typ: kString, env: "SIAMPASS_GUIDE_GREETING",
		apply:   func(cfg *Config, v any) { cfg.Guide.Greeting = v.(string) },
		extract: func(cfg Config) any { return cfg.Guide.Greeting },
	},
	{
		key: "ollama.base_url", typ: kString, env: "SIAMPASS_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.chat_model", typ: kString, env: "SIAMPASS_OLLAMA_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "gemini.model", typ: kString, env: "SIAMPASS_GEMINI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.Model },
	},
	{
		key: "gemini.api_key", typ: kString, env: "SIAMPASS_GEMINI_API_KEY",
		secret: true, account: "gemini_api_key",
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "openrouter.model", typ: kString, env: "SIAMPASS_OPENROUTER_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenRouter.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenRouter.Model },
	},
	{
		key: "openrouter.api_key", typ: kString, env: "SIAMPASS_OPENROUTER_API_KEY",
		secret: true, account: "openrouter_api_key",
		apply:   func(cfg *Config, v any) { cfg.OpenRouter.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenRouter.APIKey },
	},
	{
		key: "ar.target_url", typ: kString, env: "SIAMPASS_AR_TARGET_URL",
		apply:   func(cfg *Config, v any) { cfg.AR.TargetURL = v.(string) },
		extract: func(cfg Config) any { return cfg.AR.TargetURL },
	},
	{
		key: "ar.model_url", typ: kString, env: "SIAMPASS_AR_MODEL_URL",
		apply:   func(cfg *Config, v any) { cfg.AR.ModelURL = v.(string) },
		extract: func(cfg Config) any { return cfg.AR.ModelURL },
	},
	{
		key: "recommend.prefetch", typ: kBool, env: "SIAMPASS_RECOMMEND_PREFETCH",
		apply:   func(cfg *Config, v any) { cfg.Recommend.Prefetch = v.(bool) },
		extract: func(cfg Config) any { return cfg.Recommend.Prefetch },
	},
	{
		key: "log.level", typ: kString, env: "SIAMPASS_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		var (
			v   any
			ok  bool
			err error
		)
		switch s.typ {
		case kString:
			v, ok, err = b.GetString(s.key)
		case kInt:
			v, ok, err = b.GetInt(s.key)
		case kBool:
			v, ok, err = b.GetBool(s.key)
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if ok {
			s.apply(cfg, v)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
