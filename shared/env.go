package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Env helpers used by every service Configure(). A bad value is replaced by
// the documented default with a warning; startup never fails on config parse.

func GetEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetEnvInt clamps to [min, max] so a typo cannot accidentally disable a
// protection (e.g. a rate limit of 0 or of ten million).
func GetEnvInt(key string, fallback, min, max int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		log.WithFields(log.Fields{"key": key, "value": raw, "default": fallback}).
			Warn("Invalid integer in environment, using default")
		return fallback
	}

	if v < min || v > max {
		log.WithFields(log.Fields{"key": key, "value": v, "min": min, "max": max, "default": fallback}).
			Warn("Environment value out of range, using default")
		return fallback
	}

	return v
}

func GetEnvSeconds(key string, fallback time.Duration, min, max time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	secs, err := strconv.Atoi(raw)
	if err != nil {
		log.WithFields(log.Fields{"key": key, "value": raw, "default": fallback}).
			Warn("Invalid seconds value in environment, using default")
		return fallback
	}

	d := time.Duration(secs) * time.Second
	if d < min || d > max {
		log.WithFields(log.Fields{"key": key, "value": d, "min": min, "max": max, "default": fallback}).
			Warn("Environment duration out of range, using default")
		return fallback
	}

	return d
}

func GetEnvBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	switch strings.ToLower(raw) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	}

	log.WithFields(log.Fields{"key": key, "value": raw, "default": fallback}).
		Warn("Invalid boolean in environment, using default")
	return fallback
}
