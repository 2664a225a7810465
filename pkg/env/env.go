// Package env reads typed settings from environment variables.
package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// parsed looks key up and converts it. Unset keys and values that fail to
// parse both yield def; the latter is reported on stderr since loggers are
// not up yet when configuration is read.
func parsed[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ignoring %s=%q (%T expected), using %v\n", key, raw, def, def)
		return def
	}
	return v
}

// GetEnvString returns the raw value of key, or defaultValue when it is unset
func GetEnvString(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// GetEnvFirst returns the first non-blank value among keys, trimmed
func GetEnvFirst(defaultValue string, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return defaultValue
}

func GetEnvBool(key string, defaultValue bool) bool {
	return parsed(key, defaultValue, strconv.ParseBool)
}

func GetEnvInt(key string, defaultValue int) int {
	return parsed(key, defaultValue, strconv.Atoi)
}

func GetEnvUint64(key string, defaultValue uint64) uint64 {
	return parsed(key, defaultValue, func(s string) (uint64, error) {
		return strconv.ParseUint(s, 10, 64)
	})
}

func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return parsed(key, defaultValue, time.ParseDuration)
}
