package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/joho/godotenv"
)

// DotEnvFiles are loaded in order. godotenv never overrides variables that
// are already set, so earlier files and the real environment win.
var DotEnvFiles = []string{".env.local", ".env"}

// LoadDotEnv loads the dotenv files from dir. Missing files are ignored.
func LoadDotEnv(dir string) error {
	for _, name := range DotEnvFiles {
		path := filepath.Join(dir, name)
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// LoadDotEnvForConfig loads dotenv files next to the config file and then
// from the working directory.
func LoadDotEnvForConfig(configPath string) error {
	if configPath != "" {
		if err := LoadDotEnv(filepath.Dir(configPath)); err != nil {
			return err
		}
	}
	return LoadDotEnv(".")
}
