package agents

import (
	"context"
	"fmt"
	"strings"

	"mediflow/internal/diagnosis"
	"mediflow/internal/prompting"
)

// FallbackCondition is the sentinel primary condition used when aggregation
// cannot name a diagnosis. The pipeline never fabricates a label.
const FallbackCondition = "Further clinical assessment required"

var aggregateSpec = prompting.Spec{
	Purpose:    "Combine translation, symptom structure, literature findings, and risk assessment into one diagnosis with differentials.",
	Background: "Final stage of a diagnosis pipeline; all four upstream results are provided.",
	OutputFields: []prompting.Field{
		{Name: "primaryDiagnosis", Type: "{condition, confidence, code}", Required: true, Description: "Most likely condition; confidence as a percentage."},
		{Name: "differentialDiagnoses", Type: "[]{condition, confidence}", Required: true, Description: "Alternative conditions, most likely first."},
		{Name: "urgencyLevel", Type: "string", Required: true, Description: "One of low|medium|high|critical."},
		{Name: "recommendedTests", Type: "[]string", Required: false, Description: "Tests that would confirm or exclude the diagnosis."},
		{Name: "clinicalNotes", Type: "string", Required: true, Description: "Concise clinical reasoning for a reviewing professional."},
	},
	Constraints: []string{
		"urgencyLevel must never understate the risk assessment or red flags.",
		"Do not name a condition the findings cannot support.",
	},
}

type aggregateWire struct {
	Primary struct {
		Condition  string `json:"condition"`
		Confidence string `json:"confidence"`
		Code       string `json:"code"`
	} `json:"primaryDiagnosis"`
	Differentials []struct {
		Condition  string `json:"condition"`
		Confidence string `json:"confidence"`
	} `json:"differentialDiagnoses"`
	UrgencyLevel     string   `json:"urgencyLevel"`
	RecommendedTests []string `json:"recommendedTests"`
	ClinicalNotes    string   `json:"clinicalNotes"`
}

// AggregateIn carries all four upstream stage results plus the raw input.
type AggregateIn struct {
	Input       diagnosis.PatientInput      `json:"patient"`
	Translation diagnosis.TranslationResult `json:"translation"`
	Analysis    diagnosis.SymptomAnalysis   `json:"symptomAnalysis"`
	Research    diagnosis.ResearchFindings  `json:"research"`
	Risk        diagnosis.RiskAssessment    `json:"riskAssessment"`
}

// Aggregator synthesizes the final diagnosis record.
type Aggregator struct {
	LLM   Client
	Model string
}

func (g Aggregator) Run(ctx context.Context, in AggregateIn) (diagnosis.DiagnosisResult, Outcome) {
	var wire aggregateWire
	latency, err := generateInto(ctx, g.LLM, g.Model, aggregateSpec, in, &wire)
	if err != nil {
		return g.fallback(in), degradedOutcome(err.Error())
	}
	if strings.TrimSpace(wire.Primary.Condition) == "" {
		return g.fallback(in), degradedOutcome("aggregator: missing primary condition")
	}

	out := diagnosis.DiagnosisResult{
		Primary: diagnosis.Candidate{
			Condition:  wire.Primary.Condition,
			Confidence: diagnosis.ParseConfidence(wire.Primary.Confidence, 50),
			Code:       wire.Primary.Code,
		},
		UrgencyLevel:     floorUrgency(diagnosis.NormalizeUrgency(wire.UrgencyLevel), in),
		RecommendedTests: wire.RecommendedTests,
		ClinicalNotes:    wire.ClinicalNotes,
		AgentInsights:    buildInsights(in),
	}
	for _, d := range wire.Differentials {
		if strings.TrimSpace(d.Condition) == "" {
			continue
		}
		out.Differentials = append(out.Differentials, diagnosis.Candidate{
			Condition:  d.Condition,
			Confidence: diagnosis.ParseConfidence(d.Confidence, 30),
		})
	}
	return out, liveOutcome(g.Model, latency)
}

// fallback computes urgency directly from the monotone rule and uses the
// assessment-required sentinel instead of inventing a condition.
func (g Aggregator) fallback(in AggregateIn) diagnosis.DiagnosisResult {
	urgency := minimumUrgency(in)
	notes := "Automated synthesis was unavailable; the urgency level reflects " +
		"symptom severity, risk assessment, and red flags. Professional review is required."
	return diagnosis.DiagnosisResult{
		Primary: diagnosis.Candidate{
			Condition:  FallbackCondition,
			Confidence: 0,
		},
		UrgencyLevel:  urgency,
		ClinicalNotes: notes,
		AgentInsights: buildInsights(in),
	}
}

// minimumUrgency is the monotone floor every aggregated urgency must respect:
// at least as severe as the analyzer's urgency score, the overall risk, and
// the presence of any red flag.
func minimumUrgency(in AggregateIn) diagnosis.Urgency {
	floor := diagnosis.MaxUrgency(
		diagnosis.UrgencyFromScore(in.Analysis.UrgencyScore),
		in.Risk.OverallRisk,
	)
	if len(in.Analysis.RedFlags) > 0 || len(in.Translation.EmergencyKeywords) > 0 {
		floor = diagnosis.MaxUrgency(floor, diagnosis.UrgencyHigh)
	}
	return floor
}

func floorUrgency(proposed diagnosis.Urgency, in AggregateIn) diagnosis.Urgency {
	return diagnosis.MaxUrgency(proposed, minimumUrgency(in))
}

func buildInsights(in AggregateIn) map[string]string {
	insights := map[string]string{
		string(diagnosis.StageTranslator): fmt.Sprintf("%d emergency keyword(s) detected", len(in.Translation.EmergencyKeywords)),
		string(diagnosis.StageSymptomAnalyzer): fmt.Sprintf("%d symptom(s), urgency score %d, %d red flag(s)",
			len(in.Analysis.Symptoms), in.Analysis.UrgencyScore, len(in.Analysis.RedFlags)),
		string(diagnosis.StageResearcher): fmt.Sprintf("%d finding(s), %d outbreak signal(s)",
			len(in.Research.Findings), len(in.Research.Outbreaks)),
		string(diagnosis.StageRiskAssessor): fmt.Sprintf("overall risk %s from %d factor(s)",
			in.Risk.OverallRisk, len(in.Risk.Factors)),
	}
	return insights
}
