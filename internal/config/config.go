package config

import (
	"fmt"
	"strings"
)

// Guide providers understood by guide.Detect.
const (
	ProviderOllama     = "ollama"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)

type Config struct {
	Server     ServerConfig
	Guide      GuideConfig
	Ollama     OllamaConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	AR         ARConfig
	Recommend  RecommendConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port int
	// Token, when set, is required as a bearer token on the app API.
	Token string
}

type GuideConfig struct {
	Provider string
	Greeting string
}

type OllamaConfig struct {
	BaseURL   string
	ChatModel string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type OpenRouterConfig struct {
	APIKey string
	Model  string
}

// ARConfig describes the single marker the AR engine is configured to detect.
type ARConfig struct {
	TargetURL string
	ModelURL  string
}

type RecommendConfig struct {
	// Prefetch warms the popular provinces at startup.
	Prefetch bool
}

type LogConfig struct {
	Level string
}

const defaultGreeting = "Sawasdee! I'm Namfon, your guide to Siam. " +
	"Ask me where to go, what to eat, or for a story about any place you visit."

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Guide: GuideConfig{
			Provider: ProviderOllama,
			Greeting: defaultGreeting,
		},
		Ollama: OllamaConfig{
			BaseURL:   "http://localhost:11434",
			ChatModel: "llama3.1",
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash",
		},
		OpenRouter: OpenRouterConfig{
			Model: "google/gemini-2.5-flash",
		},
		AR: ARConfig{
			TargetURL: "https://cdn.jsdelivr.net/gh/hiukim/mind-ar-js@1.2.5/examples/image-tracking/assets/card-example/card.mind",
			ModelURL:  "https://cdn.jsdelivr.net/gh/hiukim/mind-ar-js@1.2.5/examples/image-tracking/assets/band-example/raccoon.scene.gltf",
		},
		Recommend: RecommendConfig{
			Prefetch: false,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load resolves the configuration in order: defaults, the persisted backend
// (defaults domain com.siampass.app on macOS, $XDG_CONFIG_HOME/siampass/config.json
// elsewhere), then SIAMPASS_* environment variables. Secrets not given in the
// environment are read from the platform secret store.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), platformSecrets{})
}

type secretStore interface {
	Secret(account string) (string, error)
}

func loadWith(b Backend, ss secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, ss)

	cfg.Guide.Provider = strings.ToLower(strings.TrimSpace(cfg.Guide.Provider))
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applySecrets fills still-empty secret keys from the secret store.
func applySecrets(cfg *Config, ss secretStore) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg) != "" {
			continue
		}
		if v, err := ss.Secret(s.account); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

func validate(cfg Config) error {
	switch cfg.Guide.Provider {
	case ProviderOllama:
		if cfg.Ollama.BaseURL == "" {
			return fmt.Errorf("missing required config: ollama.base_url")
		}
	case ProviderGemini:
		if cfg.Gemini.APIKey == "" {
			return fmt.Errorf("missing required config: Gemini API key. "+
				"Set it via environment variable SIAMPASS_GEMINI_API_KEY%s", secretHint("gemini_api_key"))
		}
	case ProviderOpenRouter:
		if cfg.OpenRouter.APIKey == "" {
			return fmt.Errorf("missing required config: OpenRouter API key. "+
				"Set it via environment variable SIAMPASS_OPENROUTER_API_KEY%s", secretHint("openrouter_api_key"))
		}
	default:
		return fmt.Errorf("unknown guide.provider %q (want %s, %s or %s)",
			cfg.Guide.Provider, ProviderOllama, ProviderGemini, ProviderOpenRouter)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", cfg.Server.Port)
	}
	return nil
}

type platformSecrets struct{}

func (platformSecrets) Secret(account string) (string, error) {
	out, err := readSecret(account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
