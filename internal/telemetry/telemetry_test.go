package telemetry

import (
	"context"
	"testing"
)

func TestNewProviderDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	cfg.Environment = "Staging"

	provider, err := NewProvider(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if Environment() != "staging" {
		t.Fatalf("expected lower-cased environment, got %q", Environment())
	}
	if provider.Meter("test") == nil {
		t.Fatal("expected global meter fallback")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestStripScheme(t *testing.T) {
	for in, want := range map[string]string{
		"http://collector:4318":  "collector:4318",
		"https://collector:4318": "collector:4318",
		"collector:4318":         "collector:4318",
	} {
		if got := stripScheme(in); got != want {
			t.Errorf("stripScheme(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHistogramViewsCoverFetchDuration(t *testing.T) {
	if len(createHistogramViews()) != 4 {
		t.Fatal("unexpected number of histogram views")
	}
}
