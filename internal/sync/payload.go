package sync

import (
	"encoding/json"

	"fatrack/internal/counter"
)

// counterPayload is the small key-value snapshot pushed to the companion.
// Field names are stable wire contract; receivers apply whatever subset
// decodes cleanly.
type counterPayload struct {
	UsedGrams   float64 `json:"used_grams"`
	GoalGrams   float64 `json:"goal_grams"`
	ResetHour   int     `json:"reset_hour"`
	ResetMinute int     `json:"reset_minute"`
	NextReset   int64   `json:"next_reset"`
	DeviceID    string  `json:"device_id,omitempty"`
}

func encodeCounters(snap counter.Snapshot, deviceID string) ([]byte, error) {
	return json.Marshal(counterPayload{
		UsedGrams:   snap.UsedGrams,
		GoalGrams:   snap.GoalGrams,
		ResetHour:   snap.ResetHour,
		ResetMinute: snap.ResetMinute,
		NextReset:   snap.NextReset,
		DeviceID:    deviceID,
	})
}

// applyCounters applies incoming fields one by one. Absent or malformed
// fields are skipped; a usable subset is never rejected because of a bad
// neighbor. Application goes through the normal setters, so rearm behavior
// is exactly what a local edit would trigger.
func applyCounters(c *counter.Counter, data []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}

	applied := false

	if v, ok := decodeFloat(fields, "used_grams"); ok {
		c.SetUsedGrams(v)
		applied = true
	}
	if v, ok := decodeFloat(fields, "goal_grams"); ok {
		c.SetGoalGrams(v)
		applied = true
	}

	snap := c.Snapshot()
	hour, hourOK := decodeInt(fields, "reset_hour")
	minute, minuteOK := decodeInt(fields, "reset_minute")
	if hourOK || minuteOK {
		if !hourOK {
			hour = snap.ResetHour
		}
		if !minuteOK {
			minute = snap.ResetMinute
		}
		if err := c.SetResetTime(hour, minute); err == nil {
			applied = true
		}
	}

	if v, ok := decodeInt64(fields, "next_reset"); ok {
		c.SetNextReset(v)
		applied = true
	}

	return applied
}

func decodeFloat(fields map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := fields[key]
	if !ok {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

func decodeInt(fields map[string]json.RawMessage, key string) (int, bool) {
	raw, ok := fields[key]
	if !ok {
		return 0, false
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

func decodeInt64(fields map[string]json.RawMessage, key string) (int64, bool) {
	raw, ok := fields[key]
	if !ok {
		return 0, false
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}
