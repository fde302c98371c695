package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvFileName returns the dotenv file used for the given deployment env.
func EnvFileName(env string) string {
	if IsProduction(env) {
		return ".env.production.local"
	}
	return ".env.development.local"
}

// LoadEnvFile loads dir/EnvFileName(env) into the process environment.
// Variables that are already set win. A missing file is not an error; the
// returned path is empty in that case.
func LoadEnvFile(dir, env string) (string, error) {
	path := filepath.Join(dir, EnvFileName(env))
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("load env file %s: %w", path, err)
	}
	return path, nil
}
