package hf

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// TokenProvider supplies the Hugging Face access token to components
// that need one. Injecting it keeps credential lookup out of module
// globals.
type TokenProvider interface {
	Token() (string, error)
}

// EnvTokenProvider reads the token from the environment, optionally
// bootstrapped from a .env file. HF_TOKEN wins over the legacy
// HUGGING_FACE_HUB_TOKEN name.
type EnvTokenProvider struct {
	// EnvFile, when non-empty, is loaded into the process environment
	// once before the first lookup. Missing files are not an error.
	EnvFile string

	loaded bool
}

func (p *EnvTokenProvider) Token() (string, error) {
	if p.EnvFile != "" && !p.loaded {
		p.loaded = true
		if _, err := os.Stat(p.EnvFile); err == nil {
			_ = godotenv.Load(p.EnvFile)
		}
	}
	for _, name := range []string{"HF_TOKEN", "HUGGING_FACE_HUB_TOKEN"} {
		if token := os.Getenv(name); token != "" {
			if !ValidToken(token) {
				return "", fmt.Errorf("%s is set but does not look like a Hugging Face token", name)
			}
			return token, nil
		}
	}
	return "", fmt.Errorf("no Hugging Face token in environment (set HF_TOKEN)")
}

// StaticTokenProvider returns a fixed token; intended for tests.
type StaticTokenProvider string

func (p StaticTokenProvider) Token() (string, error) {
	if p == "" {
		return "", fmt.Errorf("no token configured")
	}
	return string(p), nil
}
