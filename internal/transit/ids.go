package transit

import "strings"

const (
	stopPointPrefix = "STIF:StopPoint:Q:"
	stopAreaPrefix  = "STIF:StopArea:SP:"
	lineRefPrefix   = "STIF:Line::"
)

// StopPointID formats a canonical stop key as a stop point identifier.
func StopPointID(key string) string {
	return stopPointPrefix + key + ":"
}

// ExchangeAreaID formats an exchange area id as a stop area identifier.
func ExchangeAreaID(zdcID string) string {
	return stopAreaPrefix + zdcID + ":"
}

// LineRef formats a line id the way the live feeds expect it.
func LineRef(lineID string) string {
	return lineRefPrefix + lineID + ":"
}

// MonitoringRef normalizes a caller supplied stop identifier. Fully
// qualified STIF identifiers are kept as is; anything else is reduced to its
// last segment and formatted as a stop point.
func MonitoringRef(stopID string) string {
	if strings.HasPrefix(stopID, "STIF:") {
		return stopID
	}
	return StopPointID(lastSegment(stopID))
}

// LineIDFromRef extracts the bare line id from a "STIF:Line::<id>:" reference.
func LineIDFromRef(ref string) string {
	if strings.HasPrefix(ref, lineRefPrefix) {
		return strings.TrimSuffix(strings.TrimPrefix(ref, lineRefPrefix), ":")
	}
	return ref
}

func lastSegment(id string) string {
	parts := strings.Split(id, ":")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return id
}
