package agents

import (
	"context"
	"strings"

	"mediflow/internal/diagnosis"
	"mediflow/internal/prompting"
)

var translatorSpec = prompting.Spec{
	Purpose:    "Translate and normalize a patient's symptom description into clinical English.",
	Background: "First stage of a diagnosis pipeline. Downstream stages analyze the normalized text only.",
	OutputFields: []prompting.Field{
		{Name: "translatedText", Type: "string", Required: true, Description: "Symptom description in plain clinical English."},
		{Name: "emergencyKeywords", Type: "[]string", Required: true, Description: "Emergency-indicating phrases detected in the original text."},
		{Name: "culturalNotes", Type: "string", Required: false, Description: "Cultural or contextual framing relevant to interpretation."},
	},
	Constraints: []string{
		"Preserve every stated symptom; do not summarize symptoms away.",
		"emergencyKeywords must be empty when none are present.",
	},
}

// TranslateIn carries the translator's typed inputs.
type TranslateIn struct {
	Symptoms string                   `json:"symptoms"`
	Language string                   `json:"language"`
	History  *diagnosis.PatientRecord `json:"history,omitempty"`
}

// Translator normalizes free-text symptoms into clinical English.
type Translator struct {
	LLM   Client
	Model string
}

func (t Translator) Run(ctx context.Context, in TranslateIn) (diagnosis.TranslationResult, Outcome) {
	var out diagnosis.TranslationResult
	latency, err := generateInto(ctx, t.LLM, t.Model, translatorSpec, in, &out)
	if err != nil {
		return t.fallback(in), degradedOutcome(err.Error())
	}
	if strings.TrimSpace(out.TranslatedText) == "" {
		return t.fallback(in), degradedOutcome("translator: empty translatedText")
	}
	if out.EmergencyKeywords == nil {
		out.EmergencyKeywords = []string{}
	}
	return out, liveOutcome(t.Model, latency)
}

// fallback passes English text through unchanged and marks anything else for
// later translation; emergency keywords come from the fixed multilingual
// table either way.
func (t Translator) fallback(in TranslateIn) diagnosis.TranslationResult {
	text := strings.TrimSpace(in.Symptoms)
	lang := strings.ToLower(strings.TrimSpace(in.Language))
	if lang != "" && lang != "english" && lang != "en" {
		text = "[untranslated:" + lang + "] " + text
	}
	kws := detectEmergencyKeywords(in.Symptoms)
	if kws == nil {
		kws = []string{}
	}
	return diagnosis.TranslationResult{
		TranslatedText:    text,
		EmergencyKeywords: kws,
	}
}
