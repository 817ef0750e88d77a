package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

var (
	envRef     = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	nonEnvChar = regexp.MustCompile(`[^A-Z0-9]+`)
)

// LoadEnv loads variables from a dotenv file without overriding the
// process environment. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Expand replaces ${VAR} references with environment values. Unset
// variables expand to the empty string; a bare $ is kept as is.
func Expand(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(envRef.FindStringSubmatch(ref)[1])
	})
}

// PasswordVar names the variable overriding a profile's password, for
// example SQLSNAP_PROD_DB_PASSWORD for profile "prod-db".
func PasswordVar(profile string) string {
	name := nonEnvChar.ReplaceAllString(strings.ToUpper(profile), "_")
	return "SQLSNAP_" + strings.Trim(name, "_") + "_PASSWORD"
}

func GetEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
