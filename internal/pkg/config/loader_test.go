package config

import (
	"fmt"
	"testing"
	"time"
)

func TestLoadEnvString(t *testing.T) {
	t.Setenv("TEST_LOADER_STRING", "from-env")
	if got := LoadEnvString("TEST_LOADER_STRING", "default"); got != "from-env" {
		t.Errorf("expected env value, got %q", got)
	}
	if got := LoadEnvString("TEST_LOADER_STRING_UNSET", "default"); got != "default" {
		t.Errorf("expected default, got %q", got)
	}
}

func TestLoadEnvWithFallback(t *testing.T) {
	rejectBad := func(v string) error {
		if v == "bad" {
			return fmt.Errorf("rejected")
		}
		return nil
	}

	t.Run("unset uses default silently", func(t *testing.T) {
		result := LoadEnvWithFallback("TEST_LOADER_FALLBACK_UNSET", "default", rejectBad)
		if result.Value.(string) != "default" {
			t.Errorf("expected default, got %v", result.Value)
		}
		if result.FallbackApplied {
			t.Error("unset variable must not count as a fallback")
		}
	})

	t.Run("valid value passes through", func(t *testing.T) {
		t.Setenv("TEST_LOADER_FALLBACK_OK", "good")
		result := LoadEnvWithFallback("TEST_LOADER_FALLBACK_OK", "default", rejectBad)
		if result.Value.(string) != "good" {
			t.Errorf("expected env value, got %v", result.Value)
		}
		if result.FallbackApplied || len(result.Warnings) != 0 {
			t.Error("valid value must not produce warnings")
		}
	})

	t.Run("invalid value falls back with warning", func(t *testing.T) {
		t.Setenv("TEST_LOADER_FALLBACK_BAD", "bad")
		result := LoadEnvWithFallback("TEST_LOADER_FALLBACK_BAD", "default", rejectBad)
		if result.Value.(string) != "default" {
			t.Errorf("expected default, got %v", result.Value)
		}
		if !result.FallbackApplied || len(result.Warnings) != 1 {
			t.Errorf("expected one fallback warning, got %v", result.Warnings)
		}
	})

	t.Run("nil validator skips validation", func(t *testing.T) {
		t.Setenv("TEST_LOADER_FALLBACK_NILV", "bad")
		result := LoadEnvWithFallback("TEST_LOADER_FALLBACK_NILV", "default", nil)
		if result.Value.(string) != "bad" {
			t.Errorf("expected env value, got %v", result.Value)
		}
	})
}

func TestLoadEnvDuration(t *testing.T) {
	t.Run("parses duration string", func(t *testing.T) {
		t.Setenv("TEST_LOADER_DURATION", "90s")
		result := LoadEnvDuration("TEST_LOADER_DURATION", time.Minute, ValidatePositiveDuration)
		if result.Value.(time.Duration) != 90*time.Second {
			t.Errorf("expected 90s, got %v", result.Value)
		}
	})

	t.Run("unparseable falls back", func(t *testing.T) {
		t.Setenv("TEST_LOADER_DURATION_BAD", "ninety")
		result := LoadEnvDuration("TEST_LOADER_DURATION_BAD", time.Minute, nil)
		if result.Value.(time.Duration) != time.Minute {
			t.Errorf("expected default, got %v", result.Value)
		}
		if !result.FallbackApplied {
			t.Error("expected fallback")
		}
	})

	t.Run("validator rejection falls back", func(t *testing.T) {
		t.Setenv("TEST_LOADER_DURATION_NEG", "-5s")
		result := LoadEnvDuration("TEST_LOADER_DURATION_NEG", time.Minute, ValidatePositiveDuration)
		if result.Value.(time.Duration) != time.Minute {
			t.Errorf("expected default, got %v", result.Value)
		}
		if !result.FallbackApplied {
			t.Error("expected fallback")
		}
	})
}

func TestLoadEnvInt(t *testing.T) {
	inRange := func(v int) error { return ValidateIntRange(v, 1, 100) }

	t.Run("parses integer", func(t *testing.T) {
		t.Setenv("TEST_LOADER_INT", "42")
		result := LoadEnvInt("TEST_LOADER_INT", 10, inRange)
		if result.Value.(int) != 42 {
			t.Errorf("expected 42, got %v", result.Value)
		}
	})

	t.Run("unparseable falls back", func(t *testing.T) {
		t.Setenv("TEST_LOADER_INT_BAD", "forty-two")
		result := LoadEnvInt("TEST_LOADER_INT_BAD", 10, inRange)
		if result.Value.(int) != 10 || !result.FallbackApplied {
			t.Errorf("expected fallback to 10, got %v", result.Value)
		}
	})

	t.Run("out of range falls back", func(t *testing.T) {
		t.Setenv("TEST_LOADER_INT_RANGE", "5000")
		result := LoadEnvInt("TEST_LOADER_INT_RANGE", 10, inRange)
		if result.Value.(int) != 10 || !result.FallbackApplied {
			t.Errorf("expected fallback to 10, got %v", result.Value)
		}
	})
}

func TestLoadEnvFloat(t *testing.T) {
	t.Setenv("TEST_LOADER_FLOAT", "2.5")
	result := LoadEnvFloat("TEST_LOADER_FLOAT", 1.0, func(v float64) error {
		return ValidateFloatRange(v, 0.1, 10)
	})
	if result.Value.(float64) != 2.5 {
		t.Errorf("expected 2.5, got %v", result.Value)
	}

	t.Setenv("TEST_LOADER_FLOAT_BAD", "fast")
	result = LoadEnvFloat("TEST_LOADER_FLOAT_BAD", 1.0, nil)
	if result.Value.(float64) != 1.0 || !result.FallbackApplied {
		t.Errorf("expected fallback to 1.0, got %v", result.Value)
	}
}

func TestLoadEnvBool(t *testing.T) {
	cases := []struct {
		raw      string
		expected bool
		fallback bool
	}{
		{"true", true, false},
		{"1", true, false},
		{"T", true, false},
		{"false", false, false},
		{"0", false, false},
		{"F", false, false},
		{"yes", true, true}, // unrecognized, default true
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			t.Setenv("TEST_LOADER_BOOL", tc.raw)
			result := LoadEnvBool("TEST_LOADER_BOOL", true)
			if result.Value.(bool) != tc.expected {
				t.Errorf("value for %q: expected %v, got %v", tc.raw, tc.expected, result.Value)
			}
			if result.FallbackApplied != tc.fallback {
				t.Errorf("fallback for %q: expected %v, got %v", tc.raw, tc.fallback, result.FallbackApplied)
			}
		})
	}
}
