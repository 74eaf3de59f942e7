package domain

import (
	"math"
	"testing"
)

func TestExtractCost_ClientValueWinsOverPayload(t *testing.T) {
	client := 0.12
	meta := map[string]any{"cost": 0.99}

	cost, source := ExtractCost(&client, meta)
	if cost != 0.12 {
		t.Fatalf("expected client cost 0.12, got %v", cost)
	}
	if source != CostSourceClient {
		t.Fatalf("expected source CLIENT, got %q", source)
	}
}

func TestExtractCost_PayloadPaths(t *testing.T) {
	cases := []struct {
		name string
		meta map[string]any
		want float64
	}{
		{"top level cost", map[string]any{"cost": 0.5}, 0.5},
		{"cost breakdown total", map[string]any{"costBreakdown": map[string]any{"total": 1.25}}, 1.25},
		{"nested call cost", map[string]any{"call": map[string]any{"cost": 0.75}}, 0.75},
		{"nested call breakdown", map[string]any{"call": map[string]any{"costBreakdown": map[string]any{"total": 2.0}}}, 2.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cost, source := ExtractCost(nil, tc.meta)
			if cost != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, cost)
			}
			if source != CostSourcePayload {
				t.Fatalf("expected source PAYLOAD, got %q", source)
			}
		})
	}
}

func TestExtractCost_PathPriorityOrder(t *testing.T) {
	meta := map[string]any{
		"cost":          0.10,
		"costBreakdown": map[string]any{"total": 0.20},
	}

	cost, _ := ExtractCost(nil, meta)
	if cost != 0.10 {
		t.Fatalf("top-level cost should win, got %v", cost)
	}
}

func TestExtractCost_DefaultsToZeroWithNoMeterTag(t *testing.T) {
	cost, source := ExtractCost(nil, nil)
	if cost != 0 {
		t.Fatalf("expected zero cost, got %v", cost)
	}
	if source != CostSourceNoMeter {
		t.Fatalf("expected WEB_CALL_NO_METER, got %q", source)
	}
}

func TestExtractCost_RejectsUnusableValues(t *testing.T) {
	negative := -1.0
	cost, source := ExtractCost(&negative, nil)
	if cost != 0 || source != CostSourceNoMeter {
		t.Fatalf("negative client cost should fall through, got %v %q", cost, source)
	}

	nan := math.NaN()
	cost, source = ExtractCost(&nan, map[string]any{"cost": math.Inf(1)})
	if cost != 0 || source != CostSourceNoMeter {
		t.Fatalf("non-finite values should fall through, got %v %q", cost, source)
	}

	cost, source = ExtractCost(nil, map[string]any{"cost": "0.50"})
	if cost != 0 || source != CostSourceNoMeter {
		t.Fatalf("string cost should not resolve, got %v %q", cost, source)
	}
}

func TestValidateProviderCallID(t *testing.T) {
	if err := ValidateProviderCallID("019bb1", "webcall:"); err != nil {
		t.Fatalf("plain provider id should pass: %v", err)
	}
	if err := ValidateProviderCallID("", "webcall:"); err == nil {
		t.Fatal("empty provider id should be rejected")
	}
	if err := ValidateProviderCallID("   ", "webcall:"); err == nil {
		t.Fatal("blank provider id should be rejected")
	}
	if err := ValidateProviderCallID("webcall:1234", "webcall:"); err == nil {
		t.Fatal("legacy placeholder shape should be rejected")
	}
	if err := ValidateProviderCallID("webcall:1234", ""); err != nil {
		t.Fatalf("empty rejected prefix disables the check: %v", err)
	}
}
