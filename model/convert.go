package model

import (
	"encoding/json"
	"fmt"
	"math"
)

// ToFloat64 coerces a scalar value produced by a storage driver or JSON
// decoding into a portable float64. Native floats and ints pass through
// unchanged in value. Non-numeric values are an error; scores must be
// normalized before they cross the serialization boundary.
func ToFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}

// Round4 rounds a score to four decimal places.
func Round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

// ScoredEntityFromRow builds a scored entity from a graph query row of the
// shape {"entity": {"entityId": ..., "value": ..., "classification": ...}, "score": ...}.
func ScoredEntityFromRow(row map[string]any) (*ScoredEntity, error) {
	entityField, ok := row["entity"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("row has no entity field: %v", row)
	}

	entity := Entity{
		EntityID:       stringField(entityField, "entityId"),
		Value:          stringField(entityField, "value"),
		Classification: stringField(entityField, "classification"),
	}
	if entity.EntityID == "" {
		return nil, fmt.Errorf("entity row has no entityId: %v", row)
	}

	score := 0.0
	if raw, ok := row["score"]; ok {
		s, err := ToFloat64(raw)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", entity.EntityID, err)
		}
		score = s
	}

	return &ScoredEntity{Entity: entity, Score: score}, nil
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
