package agents

import (
	"context"
	"strings"

	"mediflow/internal/diagnosis"
	"mediflow/internal/prompting"
)

var riskSpec = prompting.Spec{
	Purpose:    "Assess patient risk from demographics, history, and the normalized symptom text.",
	Background: "Runs in parallel with literature research; both consume the symptom analyzer's output.",
	OutputFields: []prompting.Field{
		{Name: "riskFactors", Type: "[]{factor, impact, description}", Required: true, Description: "impact is one of low|medium|high."},
		{Name: "overallRisk", Type: "string", Required: true, Description: "One of low|medium|high|critical."},
		{Name: "recommendations", Type: "[]string", Required: true, Description: "Concrete next steps for the patient."},
	},
	Constraints: []string{
		"impact and overallRisk must use only the listed values.",
	},
}

// riskWire mirrors RiskAssessment with free-text enum fields, so out-of-set
// model values can be coerced instead of failing the decode.
type riskWire struct {
	Factors []struct {
		Factor      string `json:"factor"`
		Impact      string `json:"impact"`
		Description string `json:"description"`
	} `json:"riskFactors"`
	OverallRisk     string   `json:"overallRisk"`
	Recommendations []string `json:"recommendations"`
}

// RiskIn carries the risk assessor's typed inputs.
type RiskIn struct {
	Input diagnosis.PatientInput `json:"patient"`
	Text  string                 `json:"text"`
}

// RiskAssessor scores patient risk.
type RiskAssessor struct {
	LLM   Client
	Model string
}

func (r RiskAssessor) Run(ctx context.Context, in RiskIn) (diagnosis.RiskAssessment, Outcome) {
	var wire riskWire
	latency, err := generateInto(ctx, r.LLM, r.Model, riskSpec, in, &wire)
	if err != nil {
		return r.fallback(in), degradedOutcome(err.Error())
	}
	if strings.TrimSpace(wire.OverallRisk) == "" {
		return r.fallback(in), degradedOutcome("risk assessor: missing overallRisk")
	}

	out := diagnosis.RiskAssessment{
		Factors:         make([]diagnosis.RiskFactor, 0, len(wire.Factors)),
		OverallRisk:     diagnosis.NormalizeUrgency(wire.OverallRisk),
		Recommendations: wire.Recommendations,
	}
	for _, f := range wire.Factors {
		if strings.TrimSpace(f.Factor) == "" {
			continue
		}
		out.Factors = append(out.Factors, diagnosis.RiskFactor{
			Factor:      f.Factor,
			Impact:      diagnosis.NormalizeImpact(f.Impact),
			Description: f.Description,
		})
	}
	if len(out.Recommendations) == 0 {
		out.Recommendations = []string{"Consult a healthcare professional about these symptoms."}
	}
	return out, liveOutcome(r.Model, latency)
}

// fallback applies deterministic rules over age, location, prior conditions,
// and high-severity symptom substrings. Detection of an emergency substring
// escalates overall risk to critical.
func (r RiskAssessor) fallback(in RiskIn) diagnosis.RiskAssessment {
	out := diagnosis.RiskAssessment{
		Factors:     []diagnosis.RiskFactor{},
		OverallRisk: diagnosis.UrgencyLow,
	}

	if in.Input.Age >= 65 {
		out.Factors = append(out.Factors, diagnosis.RiskFactor{
			Factor:      "advanced age",
			Impact:      diagnosis.ImpactHigh,
			Description: "Patients aged 65 and over face elevated complication risk.",
		})
		out.OverallRisk = diagnosis.MaxUrgency(out.OverallRisk, diagnosis.UrgencyMedium)
	} else if in.Input.Age > 0 && in.Input.Age <= 5 {
		out.Factors = append(out.Factors, diagnosis.RiskFactor{
			Factor:      "young child",
			Impact:      diagnosis.ImpactHigh,
			Description: "Young children can deteriorate quickly and need a lower escalation threshold.",
		})
		out.OverallRisk = diagnosis.MaxUrgency(out.OverallRisk, diagnosis.UrgencyMedium)
	}

	if len(in.Input.PriorConditions) > 0 {
		out.Factors = append(out.Factors, diagnosis.RiskFactor{
			Factor:      "pre-existing conditions",
			Impact:      diagnosis.ImpactMedium,
			Description: "Known conditions: " + strings.Join(in.Input.PriorConditions, ", ") + ".",
		})
		out.OverallRisk = diagnosis.MaxUrgency(out.OverallRisk, diagnosis.UrgencyMedium)
	}

	combined := in.Text + " " + in.Input.Symptoms
	if kws := detectEmergencyKeywords(combined); len(kws) > 0 {
		out.Factors = append(out.Factors, diagnosis.RiskFactor{
			Factor:      "emergency symptom pattern",
			Impact:      diagnosis.ImpactHigh,
			Description: "Detected: " + strings.Join(kws, ", ") + ".",
		})
		out.OverallRisk = diagnosis.UrgencyCritical
	}

	switch out.OverallRisk {
	case diagnosis.UrgencyCritical:
		out.Recommendations = []string{
			"Seek emergency medical care immediately.",
			"Do not travel alone if symptoms worsen.",
		}
	case diagnosis.UrgencyHigh, diagnosis.UrgencyMedium:
		out.Recommendations = []string{
			"Arrange a medical consultation promptly.",
			"Monitor symptoms and seek urgent care if they worsen.",
		}
	default:
		out.Recommendations = []string{
			"Monitor symptoms and consult a healthcare professional if they persist.",
		}
	}
	return out
}
