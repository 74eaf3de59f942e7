package domain

import "testing"

func TestMergePayload_PreservesStartedMeta(t *testing.T) {
	existing := map[string]any{
		"meta":        map[string]any{"channel": "web", "campaign": "spring"},
		"cost_source": "WEB_CALL_NO_METER",
	}
	update := map[string]any{
		"meta":        map[string]any{"campaign": "summer", "disposition": "callback"},
		"cost_source": "CLIENT",
	}

	merged := MergePayload(existing, update)

	if merged["cost_source"] != "CLIENT" {
		t.Fatalf("top-level update should win, got %v", merged["cost_source"])
	}

	meta, ok := merged["meta"].(map[string]any)
	if !ok {
		t.Fatal("expected meta sub-object")
	}
	if meta["channel"] != "web" {
		t.Fatalf("channel from the started event must survive, got %v", meta["channel"])
	}
	if meta["campaign"] != "summer" {
		t.Fatalf("updated campaign should win, got %v", meta["campaign"])
	}
	if meta["disposition"] != "callback" {
		t.Fatalf("new field should be merged in, got %v", meta["disposition"])
	}
}

func TestMergePayload_HandlesMissingMeta(t *testing.T) {
	merged := MergePayload(map[string]any{"cost_source": "PAYLOAD"}, map[string]any{})
	if _, ok := merged["meta"]; ok {
		t.Fatal("no meta should be created when neither side has one")
	}

	merged = MergePayload(nil, map[string]any{"meta": map[string]any{"channel": "phone"}})
	meta, _ := merged["meta"].(map[string]any)
	if meta == nil || meta["channel"] != "phone" {
		t.Fatalf("update meta should carry over, got %v", merged["meta"])
	}
}

func TestBuildPayload(t *testing.T) {
	payload := BuildPayload(map[string]any{"channel": "web"}, CostSourceClient)
	if payload["cost_source"] != "CLIENT" {
		t.Fatalf("expected cost_source CLIENT, got %v", payload["cost_source"])
	}
	meta, _ := payload["meta"].(map[string]any)
	if meta == nil || meta["channel"] != "web" {
		t.Fatalf("expected meta with channel, got %v", payload["meta"])
	}

	payload = BuildPayload(nil, CostSourceNoMeter)
	if _, ok := payload["meta"]; ok {
		t.Fatal("nil meta should not be recorded")
	}
}

func TestFlagLongDuration(t *testing.T) {
	payload := FlagLongDuration(map[string]any{"cost_source": "CLIENT"})
	if payload["duration_flag"] != true {
		t.Fatal("expected duration_flag to be set")
	}

	payload = FlagLongDuration(nil)
	if payload["duration_flag"] != true {
		t.Fatal("nil payload should be initialized and flagged")
	}
}
