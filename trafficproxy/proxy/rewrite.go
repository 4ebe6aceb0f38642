package proxy

import (
	"github.com/P-juuny/tsp-prob/trafficproxy/metrics"
	"github.com/P-juuny/tsp-prob/trafficproxy/traffic"
)

// rewriteTrip adjusts a routing-engine /route response in place to reflect
// observed speeds. Works on the decoded JSON tree so every field the engine
// returned survives untouched except the times we rewrite; originals are kept
// under original_time at each level.
//
// Per maneuver: attribute a speed via street names (global-average fallback
// only under congestion, see traffic.Table.SpeedForStreets) and set
// time = length_km / speed_kmh * 3600. Unmatched maneuvers keep the engine's
// value. Leg and trip summaries are re-summed from the maneuver times.
func rewriteTrip(response map[string]any, table *traffic.Table) bool {
	trip, ok := response["trip"].(map[string]any)
	if !ok {
		return false
	}
	legs, ok := trip["legs"].([]any)
	if !ok {
		return false
	}

	rewrote := false
	tripTime := 0.0
	for _, rawLeg := range legs {
		leg, ok := rawLeg.(map[string]any)
		if !ok {
			continue
		}
		maneuvers, _ := leg["maneuvers"].([]any)
		legTime := 0.0
		legRewrote := false
		for _, rawManeuver := range maneuvers {
			maneuver, ok := rawManeuver.(map[string]any)
			if !ok {
				continue
			}
			elapsed, changed := rewriteManeuver(maneuver, table)
			legTime += elapsed
			legRewrote = legRewrote || changed
		}
		// Summaries are only re-summed when a maneuver actually changed, so
		// an engine summary that merely disagrees with its maneuver sum
		// passes through untouched.
		if summary, ok := leg["summary"].(map[string]any); ok && legRewrote {
			if orig, ok := summary["time"].(float64); ok && orig != legTime {
				summary["original_time"] = orig
			}
			summary["time"] = legTime
		}
		rewrote = rewrote || legRewrote
		tripTime += legTime
	}

	if summary, ok := trip["summary"].(map[string]any); ok && rewrote {
		if orig, ok := summary["time"].(float64); ok && orig != tripTime {
			summary["original_time"] = orig
		}
		summary["time"] = tripTime
	}

	trip["has_traffic"] = true
	trip["traffic_data_count"] = table.Len()
	return rewrote
}

// rewriteManeuver adjusts one maneuver's time and returns the time that
// should count toward the leg total plus whether it changed anything.
func rewriteManeuver(maneuver map[string]any, table *traffic.Table) (float64, bool) {
	origTime, _ := maneuver["time"].(float64)
	lengthKm, _ := maneuver["length"].(float64)
	if lengthKm <= 0 {
		metrics.RewriteManeuversTotal.WithLabelValues("untouched").Inc()
		return origTime, false
	}

	speed, ok := table.SpeedForStreets(streetNames(maneuver))
	if !ok || speed <= 0 {
		metrics.RewriteManeuversTotal.WithLabelValues("untouched").Inc()
		return origTime, false
	}

	adjusted := lengthKm / speed * 3600
	maneuver["original_time"] = origTime
	maneuver["time"] = adjusted
	metrics.RewriteManeuversTotal.WithLabelValues("rewritten").Inc()
	return adjusted, true
}

func streetNames(maneuver map[string]any) []string {
	raw, _ := maneuver["street_names"].([]any)
	names := make([]string, 0, len(raw))
	for _, n := range raw {
		if s, ok := n.(string); ok {
			names = append(names, s)
		}
	}
	return names
}

// wantsLiveTraffic reports whether the caller opted in to traffic shaping:
// costing_options.<costing>.use_live_traffic == true.
func wantsLiveTraffic(request map[string]any) bool {
	costing, _ := request["costing"].(string)
	if costing == "" {
		return false
	}
	options, ok := request["costing_options"].(map[string]any)
	if !ok {
		return false
	}
	costingOptions, ok := options[costing].(map[string]any)
	if !ok {
		return false
	}
	use, _ := costingOptions["use_live_traffic"].(bool)
	return use
}
