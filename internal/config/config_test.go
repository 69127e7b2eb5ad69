package config

import (
	"testing"
	"time"
)

func TestParseRefundTiersOrdersMostGenerousFirst(t *testing.T) {
	tiers, err := parseRefundTiers("0:25,24:100,2:50,12:75")
	if err != nil {
		t.Fatalf("parseRefundTiers: %v", err)
	}
	if len(tiers) != 4 {
		t.Fatalf("expected 4 tiers, got %d", len(tiers))
	}
	wantHours := []float64{24, 12, 2, 0}
	for i, tier := range tiers {
		if tier.HoursBefore != wantHours[i] {
			t.Fatalf("tier %d: expected %v hours, got %v", i, wantHours[i], tier.HoursBefore)
		}
	}
}

func TestParseRefundTiersRejectsBadInput(t *testing.T) {
	for _, raw := range []string{"", "24", "abc:50", "24:xyz", "24:150", "24:-1"} {
		if _, err := parseRefundTiers(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestRefundPercentForPicksFirstMatchingTier(t *testing.T) {
	cfg := &Config{RefundTiers: []RefundTier{
		{HoursBefore: 24, RefundPercent: 100},
		{HoursBefore: 12, RefundPercent: 75},
		{HoursBefore: 2, RefundPercent: 50},
		{HoursBefore: 0, RefundPercent: 25},
	}}

	cases := []struct {
		hours float64
		want  float64
	}{
		{48, 100},
		{24, 100},
		{23.9, 75},
		{12, 75},
		{5, 50},
		{2, 50},
		{1, 25},
		{0, 25},
	}
	for _, tc := range cases {
		if got := cfg.RefundPercentFor(tc.hours); got != tc.want {
			t.Errorf("RefundPercentFor(%v) = %v, want %v", tc.hours, got, tc.want)
		}
	}
}

func TestRefundPercentForWithoutTiers(t *testing.T) {
	cfg := &Config{}
	if got := cfg.RefundPercentFor(100); got != 0 {
		t.Fatalf("expected 0 without tiers, got %v", got)
	}
}

func TestTranscriptAttemptCeiling(t *testing.T) {
	cfg := &Config{
		TranscriptSweepInterval: 30 * time.Minute,
		TranscriptRetryWindow:   24 * time.Hour,
	}
	if got := cfg.TranscriptAttemptCeiling(); got != 48 {
		t.Fatalf("expected ceiling 48, got %d", got)
	}

	cfg.TranscriptSweepInterval = 0
	if got := cfg.TranscriptAttemptCeiling(); got != 0 {
		t.Fatalf("expected 0 for unset interval, got %d", got)
	}
}

func TestNormalizeEnv(t *testing.T) {
	cases := map[string]string{
		"dev":        "development",
		"LOCAL":      "development",
		"prod":       "production",
		" Staging ":  "staging",
		"test":       "test",
		"customname": "customname",
	}
	for in, want := range cases {
		if got := normalizeEnv(in); got != want {
			t.Errorf("normalizeEnv(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUnsignedCallbacksAllowedOnlyInDevelopment(t *testing.T) {
	cases := []struct {
		appEnv string
		flag   bool
		want   bool
	}{
		{"development", true, true},
		{"development", false, false},
		{"production", true, false},
		{"production", false, false},
		{"staging", true, false},
		{"test", true, false},
	}
	for _, tc := range cases {
		cfg := &Config{AppEnv: tc.appEnv, AllowUnsignedCallbacks: tc.flag}
		if got := cfg.UnsignedCallbacksAllowed(); got != tc.want {
			t.Errorf("env %q flag %v: UnsignedCallbacksAllowed() = %v, want %v",
				tc.appEnv, tc.flag, got, tc.want)
		}
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("FLAG_ON", "yes")
	t.Setenv("FLAG_OFF", "0")
	t.Setenv("FLAG_JUNK", "maybe")

	if !getEnvBool("FLAG_ON", false) {
		t.Fatal("expected yes to be true")
	}
	if getEnvBool("FLAG_OFF", true) {
		t.Fatal("expected 0 to be false")
	}
	if !getEnvBool("FLAG_JUNK", true) {
		t.Fatal("expected junk value to fall back")
	}
	if getEnvBool("FLAG_MISSING", false) {
		t.Fatal("expected missing value to fall back")
	}
}
