package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Tier is the ordinal fan classification. The numeric value is the tier rank
// (1-4), so tiers compare with the usual integer operators.
type Tier int

const (
	TierUnknown Tier = iota
	TierCasual
	TierEngaged
	TierDedicated
	TierSuperfan
)

var tierNames = map[Tier]string{
	TierCasual:    "CASUAL",
	TierEngaged:   "ENGAGED",
	TierDedicated: "DEDICATED",
	TierSuperfan:  "SUPERFAN",
}

// Tiers lists every valid tier in ascending order.
func Tiers() []Tier {
	return []Tier{TierCasual, TierEngaged, TierDedicated, TierSuperfan}
}

func (t Tier) String() string {
	if n, ok := tierNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}

// Rank returns the tier rank, 1 for CASUAL up to 4 for SUPERFAN, 0 when invalid.
func (t Tier) Rank() int {
	if !t.Valid() {
		return 0
	}
	return int(t)
}

func (t Tier) Valid() bool {
	return t >= TierCasual && t <= TierSuperfan
}

// Compare returns -1, 0 or 1 depending on whether t ranks below, equal to or above o.
func (t Tier) Compare(o Tier) int {
	switch {
	case t < o:
		return -1
	case t > o:
		return 1
	default:
		return 0
	}
}

// ParseTier parses a tier name, case-insensitively.
func ParseTier(s string) (Tier, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for t, n := range tierNames {
		if n == up {
			return t, nil
		}
	}
	return TierUnknown, fmt.Errorf("unknown tier %q", s)
}

func (t Tier) MarshalJSON() ([]byte, error) {
	if t == TierUnknown {
		return []byte("null"), nil
	}
	if !t.Valid() {
		return nil, fmt.Errorf("marshal tier: invalid value %d", int(t))
	}
	return json.Marshal(t.String())
}

func (t *Tier) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = TierUnknown
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Value stores the tier by name so rows stay readable in the database. An
// unscored fan has no tier and is stored as NULL.
func (t Tier) Value() (driver.Value, error) {
	if t == TierUnknown {
		return nil, nil
	}
	if !t.Valid() {
		return nil, fmt.Errorf("store tier: invalid value %d", int(t))
	}
	return t.String(), nil
}

func (t *Tier) Scan(src any) error {
	switch v := src.(type) {
	case string:
		p, err := ParseTier(v)
		if err != nil {
			return err
		}
		*t = p
	case []byte:
		p, err := ParseTier(string(v))
		if err != nil {
			return err
		}
		*t = p
	case nil:
		*t = TierUnknown
	default:
		return fmt.Errorf("scan tier: unsupported type %T", src)
	}
	return nil
}
