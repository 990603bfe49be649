package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"10s", 10 * time.Second, false},
		{"800ms", 800 * time.Millisecond, false},
		{"1.5h", 90 * time.Minute, false},
		{"1d", 24 * time.Hour, false},
		{"1w", 168 * time.Hour, false},
		{"2d2h", 50 * time.Hour, false},
		{"", 0, false},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDuration(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestDurationYAML(t *testing.T) {
	type testConfig struct {
		TTL  Duration `yaml:"ttl"`
		Ease Duration `yaml:"ease"`
	}

	var cfg testConfig
	if err := yaml.Unmarshal([]byte("ttl: 2d\nease: 800ms\n"), &cfg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if cfg.TTL.Std() != 48*time.Hour {
		t.Errorf("Expected 48h, got %v", cfg.TTL.Std())
	}
	if cfg.Ease.Std() != 800*time.Millisecond {
		t.Errorf("Expected 800ms, got %v", cfg.Ease.Std())
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != "ttl: 48h0m0s\nease: 800ms\n" {
		t.Errorf("unexpected YAML: %q", out)
	}
}
