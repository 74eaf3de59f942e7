package domain

import "math"

// CostSource records which source supplied the persisted cost value.
type CostSource string

const (
	// CostSourceClient means the event body carried an explicit cost_usd.
	CostSourceClient CostSource = "CLIENT"
	// CostSourcePayload means the cost was found at one of the known
	// locations inside the provider webhook metadata.
	CostSourcePayload CostSource = "PAYLOAD"
	// CostSourceNoMeter means no usable cost was present; the value
	// defaulted to zero.
	CostSourceNoMeter CostSource = "WEB_CALL_NO_METER"
)

// payloadCostPaths are the known locations of a cost value inside the
// provider's webhook metadata, in priority order.
var payloadCostPaths = [][]string{
	{"cost"},
	{"costBreakdown", "total"},
	{"call", "cost"},
	{"call", "costBreakdown", "total"},
}

// ExtractCost resolves a non-negative monetary value for a call. Priority:
// client-supplied value, then the payload paths, then a zero default. The
// function always returns a value and exactly one source tag; downstream code
// relies on cost never being absent once an "ended" event is processed.
func ExtractCost(clientCost *float64, meta map[string]any) (float64, CostSource) {
	if clientCost != nil && usableCost(*clientCost) {
		return *clientCost, CostSourceClient
	}

	for _, path := range payloadCostPaths {
		if v, ok := lookupNumber(meta, path); ok && usableCost(v) {
			return v, CostSourcePayload
		}
	}

	return 0, CostSourceNoMeter
}

func usableCost(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func lookupNumber(meta map[string]any, path []string) (float64, bool) {
	var current any = meta
	for _, key := range path {
		node, ok := current.(map[string]any)
		if !ok {
			return 0, false
		}
		current, ok = node[key]
		if !ok {
			return 0, false
		}
	}

	switch v := current.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
