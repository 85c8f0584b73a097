package cli

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFileVar names a .env file that takes precedence over --env.
const EnvFileVar = "FEEDSIFT_ENV_FILE"

// EnvLoader loads a .env file chosen by the --env flag.
type EnvLoader struct {
	value       *string
	defaultPath string
}

// AddEnvFlag registers an --env flag and returns an EnvLoader.
func AddEnvFlag(fs *flag.FlagSet, defaultPath, description string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if description == "" {
		description = "Path to the .env file"
	}

	value := fs.String("env", defaultPath, description)
	return &EnvLoader{
		value:       value,
		defaultPath: defaultPath,
	}
}

// Load applies the first readable file among FEEDSIFT_ENV_FILE, the --env
// value, and that value's basename. Variables already set in the process
// environment win over the file. A missing default file is not an error and
// yields "".
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}

	if custom := strings.TrimSpace(os.Getenv(EnvFileVar)); custom != "" {
		if err := applyEnvFile(custom); err != nil {
			return "", fmt.Errorf("load %s=%s: %w", EnvFileVar, custom, err)
		}
		return custom, nil
	}

	requested := strings.TrimSpace(derefString(l.value))
	if requested == "" {
		requested = l.defaultPath
	}

	candidates := []string{requested}
	if base := filepath.Base(requested); base != requested {
		candidates = append(candidates, base)
	}

	var lastErr error
	for _, path := range candidates {
		err := applyEnvFile(path)
		if err == nil {
			return path, nil
		}
		lastErr = err
	}

	if requested == l.defaultPath && errors.Is(lastErr, fs.ErrNotExist) {
		return "", nil
	}
	return "", fmt.Errorf("load env file %s: %w", requested, lastErr)
}

func applyEnvFile(path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		return err
	}
	for key, value := range values {
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
