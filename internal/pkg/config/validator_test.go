package config

import (
	"testing"
	"time"
)

func TestValidateCronSchedule(t *testing.T) {
	valid := []string{
		"30 5 * * *",
		"*/15 * * * *",
		"0 */6 * * *",
		"30 9 * * 1-5",
	}
	for _, schedule := range valid {
		if err := ValidateCronSchedule(schedule); err != nil {
			t.Errorf("expected %q to be valid: %v", schedule, err)
		}
	}

	invalid := []string{
		"",
		"not a cron",
		"61 5 * * *",
		"30 5 * *",
	}
	for _, schedule := range invalid {
		if err := ValidateCronSchedule(schedule); err == nil {
			t.Errorf("expected %q to be rejected", schedule)
		}
	}
}

func TestValidateTimezone(t *testing.T) {
	for _, tz := range []string{"UTC", "Asia/Tokyo", "America/New_York"} {
		if err := ValidateTimezone(tz); err != nil {
			t.Errorf("expected %q to be valid: %v", tz, err)
		}
	}
	for _, tz := range []string{"", "Mars/Olympus", "+09:00"} {
		if err := ValidateTimezone(tz); err == nil {
			t.Errorf("expected %q to be rejected", tz)
		}
	}
}

func TestValidateDuration(t *testing.T) {
	if err := ValidateDuration(30*time.Second, time.Second, time.Minute); err != nil {
		t.Errorf("in-range duration rejected: %v", err)
	}
	if err := ValidateDuration(time.Second, time.Second, time.Minute); err != nil {
		t.Errorf("min boundary rejected: %v", err)
	}
	if err := ValidateDuration(time.Hour, time.Second, time.Minute); err == nil {
		t.Error("expected above-max duration to be rejected")
	}
	if err := ValidateDuration(time.Millisecond, time.Second, time.Minute); err == nil {
		t.Error("expected below-min duration to be rejected")
	}
	if err := ValidateDuration(time.Second, time.Minute, time.Second); err == nil {
		t.Error("expected inverted range to be rejected")
	}
}

func TestValidateIntRange(t *testing.T) {
	if err := ValidateIntRange(5, 1, 10); err != nil {
		t.Errorf("in-range value rejected: %v", err)
	}
	if err := ValidateIntRange(0, 1, 10); err == nil {
		t.Error("expected below-min value to be rejected")
	}
	if err := ValidateIntRange(11, 1, 10); err == nil {
		t.Error("expected above-max value to be rejected")
	}
	if err := ValidateIntRange(5, 10, 1); err == nil {
		t.Error("expected inverted range to be rejected")
	}
}

func TestValidateFloatRange(t *testing.T) {
	if err := ValidateFloatRange(2.5, 0.1, 10); err != nil {
		t.Errorf("in-range value rejected: %v", err)
	}
	if err := ValidateFloatRange(0.01, 0.1, 10); err == nil {
		t.Error("expected below-min value to be rejected")
	}
	if err := ValidateFloatRange(20, 0.1, 10); err == nil {
		t.Error("expected above-max value to be rejected")
	}
}

func TestValidatePositiveDuration(t *testing.T) {
	if err := ValidatePositiveDuration(time.Second); err != nil {
		t.Errorf("positive duration rejected: %v", err)
	}
	if err := ValidatePositiveDuration(0); err == nil {
		t.Error("expected zero duration to be rejected")
	}
	if err := ValidatePositiveDuration(-time.Second); err == nil {
		t.Error("expected negative duration to be rejected")
	}
}
