package diagnosis

import (
	"encoding/json"
	"testing"

	"mediflow/internal/tester"
)

func TestNormalizeUrgency(t *testing.T) {
	cases := []struct {
		in   string
		want Urgency
	}{
		{"low", UrgencyLow},
		{" HIGH ", UrgencyHigh},
		{"Critical", UrgencyCritical},
		{"", UrgencyMedium},
		{"severe", UrgencyMedium},
	}
	for _, c := range cases {
		tester.Eq(t, NormalizeUrgency(c.in), c.want, c.in)
	}
}

func TestMaxUrgency(t *testing.T) {
	tester.Eq(t, MaxUrgency(UrgencyLow, UrgencyHigh, UrgencyMedium), UrgencyHigh)
	tester.Eq(t, MaxUrgency(), UrgencyLow)
	tester.Eq(t, MaxUrgency(UrgencyCritical, UrgencyLow), UrgencyCritical)
}

func TestUrgencyFromScore(t *testing.T) {
	cases := []struct {
		score int
		want  Urgency
	}{
		{1, UrgencyLow},
		{3, UrgencyLow},
		{4, UrgencyMedium},
		{7, UrgencyHigh},
		{9, UrgencyCritical},
		{15, UrgencyCritical}, // clamped
		{-2, UrgencyLow},      // clamped
	}
	for _, c := range cases {
		tester.Eq(t, UrgencyFromScore(c.score), c.want)
	}
}

func TestParseConfidence(t *testing.T) {
	cases := []struct {
		in   string
		want Confidence
	}{
		{"85%", 85},
		{"85", 85},
		{" 85 % ", 85},
		{"0.85", 85},
		{"about 70 percent", 70},
		{"confidence: 42.6", 43},
		{"140", 100},
		{"-5", 0},
		{"", 50},
		{"unknown", 50},
	}
	for _, c := range cases {
		tester.Eq(t, ParseConfidence(c.in, 50), c.want, c.in)
	}
}

func TestConfidenceJSONRoundTrip(t *testing.T) {
	b, err := json.Marshal(Confidence(85))
	tester.NoErr(t, err)
	tester.Eq(t, string(b), `"85%"`)

	var c Confidence
	tester.NoErr(t, json.Unmarshal([]byte(`"85%"`), &c))
	tester.Eq(t, c, Confidence(85))

	tester.NoErr(t, json.Unmarshal([]byte(`0.9`), &c))
	tester.Eq(t, c, Confidence(90))

	tester.NoErr(t, json.Unmarshal([]byte(`72`), &c))
	tester.Eq(t, c, Confidence(72))
}

func TestStageSetRecord(t *testing.T) {
	var set StageSet
	for _, stage := range Stages() {
		rec := set.Record(stage)
		if rec == nil {
			t.Fatalf("no slot for stage %q", stage)
		}
		rec.Status = StageCompleted
	}
	tester.Eq(t, set.Translator.Status, StageCompleted)
	tester.Eq(t, set.Aggregator.Status, StageCompleted)
	tester.True(t, set.Record("unknown") == nil, "unknown stage has no slot")
}
