package agents

import (
	"context"
	"sort"
	"strings"

	"mediflow/internal/diagnosis"
	"mediflow/internal/prompting"
)

var symptomSpec = prompting.Spec{
	Purpose:    "Structure a normalized symptom description into discrete symptoms with severity, duration, and affected body system.",
	Background: "Second stage of a diagnosis pipeline; research and risk assessment both consume this output.",
	OutputFields: []prompting.Field{
		{Name: "symptoms", Type: "[]{name, severity, duration, bodySystem}", Required: true, Description: "Each symptom with severity 1-10."},
		{Name: "redFlags", Type: "[]string", Required: true, Description: "Findings that unconditionally elevate urgency."},
		{Name: "urgencyScore", Type: "int", Required: true, Description: "Overall urgency 1-10."},
	},
	Constraints: []string{
		"severity and urgencyScore are integers between 1 and 10.",
		"redFlags must be empty when none are present.",
	},
}

// AnalyzeIn carries the analyzer's typed inputs.
type AnalyzeIn struct {
	Text   string `json:"text"`
	Age    int    `json:"age,omitempty"`
	Gender string `json:"gender,omitempty"`
}

// SymptomAnalyzer structures normalized symptom text.
type SymptomAnalyzer struct {
	LLM   Client
	Model string
}

func (a SymptomAnalyzer) Run(ctx context.Context, in AnalyzeIn) (diagnosis.SymptomAnalysis, Outcome) {
	var out diagnosis.SymptomAnalysis
	latency, err := generateInto(ctx, a.LLM, a.Model, symptomSpec, in, &out)
	if err != nil {
		return a.fallback(in), degradedOutcome(err.Error())
	}
	if len(out.Symptoms) == 0 {
		return a.fallback(in), degradedOutcome("symptom analyzer: no symptoms extracted")
	}
	for i := range out.Symptoms {
		out.Symptoms[i].Severity = diagnosis.ClampScore(out.Symptoms[i].Severity)
	}
	out.UrgencyScore = diagnosis.ClampScore(out.UrgencyScore)
	if out.RedFlags == nil {
		out.RedFlags = []string{}
	}
	return out, liveOutcome(a.Model, latency)
}

// symptomRule maps a substring of the symptom text onto a canned structured
// symptom. The table is ordered; matching is deterministic.
type symptomRule struct {
	substr     string
	name       string
	severity   int
	urgency    int
	bodySystem string
	redFlag    string
}

var symptomRules = []symptomRule{
	{substr: "chest pain", name: "chest pain", severity: 8, urgency: 9, bodySystem: "cardiovascular", redFlag: "chest pain"},
	{substr: "difficulty breathing", name: "difficulty breathing", severity: 8, urgency: 9, bodySystem: "respiratory", redFlag: "difficulty breathing"},
	{substr: "shortness of breath", name: "shortness of breath", severity: 7, urgency: 8, bodySystem: "respiratory", redFlag: "shortness of breath"},
	{substr: "severe bleeding", name: "severe bleeding", severity: 9, urgency: 10, bodySystem: "circulatory", redFlag: "severe bleeding"},
	{substr: "unconscious", name: "loss of consciousness", severity: 9, urgency: 10, bodySystem: "neurological", redFlag: "loss of consciousness"},
	{substr: "seizure", name: "seizure", severity: 8, urgency: 9, bodySystem: "neurological", redFlag: "seizure"},
	{substr: "severe headache", name: "severe headache", severity: 6, urgency: 6, bodySystem: "neurological"},
	{substr: "abdominal pain", name: "abdominal pain", severity: 5, urgency: 5, bodySystem: "gastrointestinal"},
	{substr: "fever", name: "fever", severity: 5, urgency: 4, bodySystem: "systemic"},
	{substr: "vomiting", name: "vomiting", severity: 4, urgency: 4, bodySystem: "gastrointestinal"},
	{substr: "nausea", name: "nausea", severity: 4, urgency: 3, bodySystem: "gastrointestinal"},
	{substr: "dizziness", name: "dizziness", severity: 4, urgency: 4, bodySystem: "neurological"},
	{substr: "headache", name: "headache", severity: 4, urgency: 3, bodySystem: "neurological"},
	{substr: "cough", name: "cough", severity: 3, urgency: 2, bodySystem: "respiratory"},
	{substr: "fatigue", name: "fatigue", severity: 3, urgency: 2, bodySystem: "systemic"},
	{substr: "rash", name: "rash", severity: 3, urgency: 2, bodySystem: "dermatological"},
}

// fallback maps symptom substrings onto the fixed severity table. With no
// match it yields a single neutral low-urgency entry; required fields are
// never left empty.
func (a SymptomAnalyzer) fallback(in AnalyzeIn) diagnosis.SymptomAnalysis {
	lower := strings.ToLower(in.Text)
	seen := map[string]bool{}
	out := diagnosis.SymptomAnalysis{RedFlags: []string{}, UrgencyScore: 1}

	for _, r := range symptomRules {
		if !strings.Contains(lower, r.substr) || seen[r.name] {
			continue
		}
		seen[r.name] = true
		out.Symptoms = append(out.Symptoms, diagnosis.SymptomDetail{
			Name:       r.name,
			Severity:   diagnosis.ClampScore(r.severity),
			BodySystem: r.bodySystem,
		})
		if r.urgency > out.UrgencyScore {
			out.UrgencyScore = diagnosis.ClampScore(r.urgency)
		}
		if r.redFlag != "" {
			out.RedFlags = append(out.RedFlags, r.redFlag)
		}
	}

	if len(out.Symptoms) == 0 {
		out.Symptoms = []diagnosis.SymptomDetail{{
			Name:       "unspecified symptoms",
			Severity:   2,
			BodySystem: "general",
		}}
		out.UrgencyScore = 2
	}
	// Keep nested symptoms ordered by descending severity, then name.
	sort.SliceStable(out.Symptoms, func(i, j int) bool {
		if out.Symptoms[i].Severity != out.Symptoms[j].Severity {
			return out.Symptoms[i].Severity > out.Symptoms[j].Severity
		}
		return out.Symptoms[i].Name < out.Symptoms[j].Name
	})
	return out
}
