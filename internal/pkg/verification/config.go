package verification

import (
	"strings"
	"time"

	"github.com/ServiAPP/serviapp/internal/pkg/env"
)

const (
	DefaultBaseURL       = "https://api.openai.com/v1"
	DefaultModel         = "gpt-4o-mini"
	DefaultMinConfidence = 0.8
	defaultTimeout       = 30 * time.Second
)

// Config holds the AI endpoint settings used for document/selfie matching.
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	MinConfidence float64
	Timeout       time.Duration
	// PresignTTL of zero uses the object store default.
	PresignTTL time.Duration
}

func LoadConfig() Config {
	return Config{
		APIKey:        env.GetEnv("AI_API_KEY", ""),
		BaseURL:       strings.TrimRight(env.GetEnv("AI_BASE_URL", DefaultBaseURL), "/"),
		Model:         env.GetEnv("AI_VISION_MODEL", DefaultModel),
		MinConfidence: env.GetEnvFloat("VERIFICATION_MIN_CONFIDENCE", DefaultMinConfidence),
		Timeout:       env.GetEnvDuration("AI_TIMEOUT", defaultTimeout),
		PresignTTL:    env.GetEnvDuration("VERIFICATION_PRESIGN_TTL", 0),
	}
}

// IsConfigured reports whether an AI key is present.
func (c Config) IsConfigured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}
