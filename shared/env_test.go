package shared

import (
	"testing"
	"time"
)

func TestGetEnvInt(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  int
	}{
		{"unset", "", 500},
		{"valid", "250", 250},
		{"not a number", "abc", 500},
		{"below min", "0", 500},
		{"above max", "999999", 500},
		{"at min", "1", 1},
		{"at max", "100000", 100000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_INT", tc.value)
			if got := GetEnvInt("TEST_ENV_INT", 500, 1, 100000); got != tc.want {
				t.Fatalf("GetEnvInt(%q) = %d, want %d", tc.value, got, tc.want)
			}
		})
	}
}

func TestGetEnvSeconds(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"unset", "", time.Minute},
		{"valid", "30", 30 * time.Second},
		{"not a number", "soon", time.Minute},
		{"below min", "0", time.Minute},
		{"above max", "90000", time.Minute},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_SECONDS", tc.value)
			got := GetEnvSeconds("TEST_ENV_SECONDS", time.Minute, time.Second, 24*time.Hour)
			if got != tc.want {
				t.Fatalf("GetEnvSeconds(%q) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"on", true},
		{"false", false},
		{"0", false},
		{"off", false},
		{"maybe", false},
	}

	for _, tc := range cases {
		t.Setenv("TEST_ENV_BOOL", tc.value)
		if got := GetEnvBool("TEST_ENV_BOOL", false); got != tc.want {
			t.Errorf("GetEnvBool(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestGetEnvString(t *testing.T) {
	t.Setenv("TEST_ENV_STRING", "")
	if got := GetEnvString("TEST_ENV_STRING", "fallback"); got != "fallback" {
		t.Fatalf("unset = %q, want fallback", got)
	}

	t.Setenv("TEST_ENV_STRING", "value")
	if got := GetEnvString("TEST_ENV_STRING", "fallback"); got != "value" {
		t.Fatalf("set = %q, want value", got)
	}
}
