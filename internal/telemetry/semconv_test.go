package telemetry

import "testing"

func TestFetchAttributes(t *testing.T) {
	attrs := FetchAttributes("test", "ironman", OutcomeNotFound)
	if len(attrs) != 3 {
		t.Fatalf("expected 3 attributes, got %d", len(attrs))
	}
	if attrs[1].Key != AttrMode || attrs[1].Value.AsString() != "ironman" {
		t.Fatalf("unexpected mode attribute %+v", attrs[1])
	}
	if attrs[2].Value.AsString() != OutcomeNotFound {
		t.Fatalf("unexpected outcome attribute %+v", attrs[2])
	}
}

func TestBatchAttributes(t *testing.T) {
	attrs := BatchAttributes("prod", "transient-failure", "cancelled")
	if attrs[0].Value.AsString() != "prod" || attrs[2].Value.AsString() != "cancelled" {
		t.Fatalf("unexpected attributes %+v", attrs)
	}
}

func TestEnvironmentDefaults(t *testing.T) {
	globalEnvironment = ""
	if Environment() != "development" {
		t.Fatalf("expected development default, got %q", Environment())
	}
}
