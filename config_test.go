package unzipper

import (
	"runtime"
	"testing"
	"time"
)

func TestEffectiveParallelism(t *testing.T) {
	def := min(8, max(1, runtime.NumCPU()))

	tests := []struct {
		name string
		in   int
		want int
	}{
		{"unspecified", 0, def},
		{"negative", -3, def},
		{"one", 1, 1},
		{"within range", 5, 5},
		{"upper bound", 8, 8},
		{"clamped", 64, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveParallelism(tt.in); got != tt.want {
				t.Errorf("EffectiveParallelism(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{DestinationRoot: "/out", MaxParallel: 20}.WithDefaults()

	if cfg.MaxParallel != MaxParallelLimit {
		t.Errorf("MaxParallel = %d, want %d", cfg.MaxParallel, MaxParallelLimit)
	}
	if cfg.ChunkSize != 256*1024 {
		t.Errorf("ChunkSize = %d, want 256 KiB", cfg.ChunkSize)
	}
	if cfg.ThrottleInterval != 150*time.Millisecond {
		t.Errorf("ThrottleInterval = %v, want 150ms", cfg.ThrottleInterval)
	}
	if cfg.ExpansionFactor != 3 {
		t.Errorf("ExpansionFactor = %d, want 3", cfg.ExpansionFactor)
	}
	if cfg.DestinationRoot != "/out" {
		t.Errorf("DestinationRoot changed: %q", cfg.DestinationRoot)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{DestinationRoot: "/out"}, false},
		{"missing root", Config{}, true},
		{"negative chunk", Config{DestinationRoot: "/out", ChunkSize: -1}, true},
		{"negative interval", Config{DestinationRoot: "/out", ThrottleInterval: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
