package diagnosis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Urgency is the closed severity classification attached to results and to
// overall risk. Values are serialized as lowercase strings.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

var urgencyRank = map[Urgency]int{
	UrgencyLow:      1,
	UrgencyMedium:   2,
	UrgencyHigh:     3,
	UrgencyCritical: 4,
}

// Rank returns the ordering position (low=1 .. critical=4); unknown values
// rank as medium.
func (u Urgency) Rank() int {
	if r, ok := urgencyRank[u]; ok {
		return r
	}
	return urgencyRank[UrgencyMedium]
}

// NormalizeUrgency coerces free text into the closed urgency set. Unknown
// values become medium rather than being rejected.
func NormalizeUrgency(s string) Urgency {
	switch Urgency(strings.ToLower(strings.TrimSpace(s))) {
	case UrgencyLow:
		return UrgencyLow
	case UrgencyMedium:
		return UrgencyMedium
	case UrgencyHigh:
		return UrgencyHigh
	case UrgencyCritical:
		return UrgencyCritical
	}
	return UrgencyMedium
}

// MaxUrgency returns the most severe of the given values.
func MaxUrgency(values ...Urgency) Urgency {
	out := UrgencyLow
	for _, v := range values {
		if v.Rank() > out.Rank() {
			out = v
		}
	}
	return out
}

// UrgencyFromScore maps an analyzer urgency score in [1,10] onto the enum.
func UrgencyFromScore(score int) Urgency {
	score = ClampScore(score)
	switch {
	case score >= 9:
		return UrgencyCritical
	case score >= 7:
		return UrgencyHigh
	case score >= 4:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// Impact is the closed per-factor risk impact set.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// NormalizeImpact coerces free text into the impact set, defaulting to medium.
func NormalizeImpact(s string) Impact {
	switch Impact(strings.ToLower(strings.TrimSpace(s))) {
	case ImpactLow:
		return ImpactLow
	case ImpactMedium:
		return ImpactMedium
	case ImpactHigh:
		return ImpactHigh
	}
	return ImpactMedium
}

// ClampScore clamps severity/urgency scores into [1,10].
func ClampScore(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

// ClampEvidence clamps evidence levels into [1,5].
func ClampEvidence(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}

// Confidence is a canonical confidence percent in [0,100]. The upstream model
// emits opaque strings like "85%", "85", or prose; Confidence parses those
// leniently and always renders back as a percentage-suffixed string, which is
// the shape existing consumers expect.
type Confidence int

// ParseConfidence extracts a percent from a free-text confidence value.
// A fraction in (0,1] is treated as a ratio. Unparseable input yields def.
func ParseConfidence(s string, def Confidence) Confidence {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return def.clamp()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Pull the first numeric run out of prose like "about 70 percent".
		start, end := -1, -1
		for i, r := range s {
			if (r >= '0' && r <= '9') || r == '.' {
				if start < 0 {
					start = i
				}
				end = i + 1
			} else if start >= 0 {
				break
			}
		}
		if start < 0 {
			return def.clamp()
		}
		f, err = strconv.ParseFloat(s[start:end], 64)
		if err != nil {
			return def.clamp()
		}
	}
	if f > 0 && f <= 1 {
		f *= 100
	}
	return Confidence(int(f + 0.5)).clamp()
}

func (c Confidence) clamp() Confidence {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

func (c Confidence) String() string {
	return strconv.Itoa(int(c.clamp())) + "%"
}

func (c Confidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Confidence) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = ParseConfidence(s, 50)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		if n > 0 && n <= 1 {
			n *= 100
		}
		*c = Confidence(int(n + 0.5)).clamp()
		return nil
	}
	return fmt.Errorf("confidence: unsupported JSON value %s", string(data))
}
