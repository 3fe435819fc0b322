package agents

import (
	"context"
	"strings"

	"mediflow/internal/diagnosis"
	"mediflow/internal/prompting"
)

var researchSpec = prompting.Spec{
	Purpose:    "Surface relevant medical literature, regional disease patterns, and current outbreaks for a structured symptom picture.",
	Background: "Runs in parallel with risk assessment; both consume the symptom analyzer's output.",
	OutputFields: []prompting.Field{
		{Name: "findings", Type: "[]{title, summary, evidenceLevel, source}", Required: true, Description: "Literature items; evidenceLevel 1-5 (1 strongest)."},
		{Name: "regionalNotes", Type: "string", Required: false, Description: "Disease patterns relevant to the patient's region."},
		{Name: "outbreaks", Type: "[]string", Required: true, Description: "Currently circulating outbreaks relevant to the symptoms."},
	},
	Constraints: []string{
		"evidenceLevel is an integer between 1 and 5.",
		"Empty lists are valid; never invent citations.",
	},
}

// ResearchIn carries the researcher's typed inputs.
type ResearchIn struct {
	Text     string `json:"text"`
	Location string `json:"location,omitempty"`
}

// Researcher looks up literature and regional context.
type Researcher struct {
	LLM   Client
	Model string
}

func (r Researcher) Run(ctx context.Context, in ResearchIn) (diagnosis.ResearchFindings, Outcome) {
	var out diagnosis.ResearchFindings
	latency, err := generateInto(ctx, r.LLM, r.Model, researchSpec, in, &out)
	if err != nil {
		return r.fallback(in), degradedOutcome(err.Error())
	}
	for i := range out.Findings {
		out.Findings[i].EvidenceLevel = diagnosis.ClampEvidence(out.Findings[i].EvidenceLevel)
	}
	if out.Findings == nil {
		out.Findings = []diagnosis.Finding{}
	}
	if out.Outbreaks == nil {
		out.Outbreaks = []string{}
	}
	return out, liveOutcome(r.Model, latency)
}

type regionalRule struct {
	locationSubstr string
	symptomSubstr  string
	note           string
}

var regionalRules = []regionalRule{
	{locationSubstr: "africa", symptomSubstr: "fever", note: "Febrile illness in sub-Saharan regions warrants malaria testing."},
	{locationSubstr: "nigeria", symptomSubstr: "fever", note: "Febrile illness in Nigeria warrants malaria and typhoid testing."},
	{locationSubstr: "kenya", symptomSubstr: "fever", note: "Febrile illness in Kenya warrants malaria testing."},
	{locationSubstr: "india", symptomSubstr: "fever", note: "Consider dengue and typhoid in febrile patients in South Asia."},
	{locationSubstr: "brazil", symptomSubstr: "fever", note: "Consider dengue and chikungunya in febrile patients in Brazil."},
	{locationSubstr: "southeast asia", symptomSubstr: "fever", note: "Consider dengue in febrile patients in Southeast Asia."},
}

// fallback yields zero or more canned regional notes from the location and
// symptom substring table. Empty findings are a valid result.
func (r Researcher) fallback(in ResearchIn) diagnosis.ResearchFindings {
	out := diagnosis.ResearchFindings{
		Findings:  []diagnosis.Finding{},
		Outbreaks: []string{},
	}
	loc := strings.ToLower(in.Location)
	text := strings.ToLower(in.Text)
	var notes []string
	for _, rule := range regionalRules {
		if strings.Contains(loc, rule.locationSubstr) && strings.Contains(text, rule.symptomSubstr) {
			notes = append(notes, rule.note)
		}
	}
	out.RegionalNotes = strings.Join(notes, " ")
	return out
}
