package domain

// Keys used inside the persisted raw_payload JSON object.
const (
	payloadMetaKey         = "meta"
	payloadCostSourceKey   = "cost_source"
	payloadDurationFlagKey = "duration_flag"
)

// BuildPayload assembles the raw_payload object persisted with a call row:
// the event metadata under "meta" plus the cost provenance tag.
func BuildPayload(meta map[string]any, source CostSource) map[string]any {
	payload := map[string]any{
		payloadCostSourceKey: string(source),
	}
	if meta != nil {
		payload[payloadMetaKey] = meta
	}
	return payload
}

// MergePayload merges an update into an existing raw_payload. Top-level keys
// from the update win, except "meta", which is deep-merged so fields recorded
// on the "started" event (like channel) survive the "ended" update.
func MergePayload(existing, update map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(update))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range update {
		if k != payloadMetaKey {
			merged[k] = v
		}
	}

	existingMeta, _ := existing[payloadMetaKey].(map[string]any)
	updateMeta, _ := update[payloadMetaKey].(map[string]any)
	if existingMeta == nil && updateMeta == nil {
		return merged
	}

	meta := make(map[string]any, len(existingMeta)+len(updateMeta))
	for k, v := range existingMeta {
		meta[k] = v
	}
	for k, v := range updateMeta {
		meta[k] = v
	}
	merged[payloadMetaKey] = meta
	return merged
}

// FlagLongDuration sets the observe-only duration flag on a payload.
func FlagLongDuration(payload map[string]any) map[string]any {
	if payload == nil {
		payload = map[string]any{}
	}
	payload[payloadDurationFlagKey] = true
	return payload
}
