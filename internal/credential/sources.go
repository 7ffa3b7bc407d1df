package credential

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	// EnvVar is the environment variable, dotenv key and header macro that
	// carries the API key.
	EnvVar = "OJP_API_KEY"

	DefaultHeaderPath = "include/secrets.h"
	DefaultDotenvPath = ".env"
)

var defineRe = regexp.MustCompile(`#define\s+` + EnvVar + `\s+"([^"]+)"`)

// EnvSource reads the key from the process environment.
type EnvSource struct{}

type envKey struct {
	APIKey string `env:"OJP_API_KEY"`
}

func (EnvSource) Get(context.Context) (Credential, error) {
	var k envKey
	if err := envdecode.Decode(&k); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Credential{}, fmt.Errorf("decoding environment: %w", err)
	}
	cred := New(k.APIKey)
	if cred.IsZero() {
		return Credential{}, fmt.Errorf("environment variable %s: %w", EnvVar, ErrMissing)
	}
	log.Debug().Str("source", "env").Msg("Loaded API key")
	return cred, nil
}

// HeaderFileSource reads the key from a C header defining OJP_API_KEY, the
// layout the display firmware is built with.
type HeaderFileSource struct {
	Path string
}

func (s HeaderFileSource) Get(context.Context) (Credential, error) {
	path := s.Path
	if path == "" {
		path = DefaultHeaderPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Credential{}, fmt.Errorf("%s not found: %w", path, ErrMissing)
		}
		return Credential{}, fmt.Errorf("reading %s: %w", path, err)
	}

	m := defineRe.FindSubmatch(content)
	if m == nil {
		return Credential{}, fmt.Errorf("%s not defined in %s: %w", EnvVar, path, ErrMissing)
	}
	cred := New(string(m[1]))
	if cred.IsZero() {
		return Credential{}, fmt.Errorf("%s is blank in %s: %w", EnvVar, path, ErrMissing)
	}
	log.Debug().Str("source", "header").Str("path", path).Msg("Loaded API key")
	return cred, nil
}

// DotenvSource reads the key from a dotenv file without touching the
// process environment.
type DotenvSource struct {
	Path string
}

func (s DotenvSource) Get(context.Context) (Credential, error) {
	path := s.Path
	if path == "" {
		path = DefaultDotenvPath
	}

	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Credential{}, fmt.Errorf("%s not found: %w", path, ErrMissing)
		}
		return Credential{}, fmt.Errorf("reading %s: %w", path, err)
	}

	cred := New(values[EnvVar])
	if cred.IsZero() {
		return Credential{}, fmt.Errorf("%s not set in %s: %w", EnvVar, path, ErrMissing)
	}
	log.Debug().Str("source", "dotenv").Str("path", path).Msg("Loaded API key")
	return cred, nil
}
