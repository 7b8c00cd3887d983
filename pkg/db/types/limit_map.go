package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// LimitMap stores per-metric usage caps as JSONB. A value of -1 means the
// metric is unlimited on that plan.
type LimitMap map[string]int64

const UnlimitedLimit int64 = -1

func (m *LimitMap) Scan(src any) error {
	if src == nil {
		*m = LimitMap{}
		return nil
	}

	switch v := src.(type) {
	case string:
		return m.parseFromBytes([]byte(v))
	case []byte:
		return m.parseFromBytes(v)
	default:
		return fmt.Errorf("LimitMap: unsupported Scan type %T", src)
	}
}

func (m LimitMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("LimitMap: marshal: %w", err)
	}
	return string(encoded), nil
}

// Limit returns the cap for metric; metrics absent from the map are unlimited.
func (m LimitMap) Limit(metric string) int64 {
	if m == nil {
		return UnlimitedLimit
	}
	if limit, ok := m[metric]; ok {
		return limit
	}
	return UnlimitedLimit
}

func (m *LimitMap) parseFromBytes(raw []byte) error {
	if len(raw) == 0 {
		*m = LimitMap{}
		return nil
	}
	out := LimitMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("LimitMap: unmarshal: %w", err)
	}
	*m = out
	return nil
}
