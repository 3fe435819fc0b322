package prompting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Field describes one output field in the response schema shown to the model.
type Field struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

// Spec defines the sections of a structured stage prompt.
type Spec struct {
	Purpose      string
	Background   string
	OutputFields []Field
	Constraints  []string
	Rules        []string
	Assumptions  []string
	OutputFormat string
	Language     string
}

// Build renders the sectioned prompt with the given input payload embedded
// as JSON.
func Build(spec Spec, input any) (string, error) {
	if strings.TrimSpace(spec.Purpose) == "" {
		return "", fmt.Errorf("prompting: purpose is empty")
	}
	if len(spec.OutputFields) == 0 {
		return "", fmt.Errorf("prompting: output fields are empty")
	}
	inputJSON, err := formatAnyJSON(input)
	if err != nil {
		return "", fmt.Errorf("prompting: encode input: %w", err)
	}

	var buf bytes.Buffer
	writeSection(&buf, "PURPOSE", spec.Purpose)
	writeSection(&buf, "BACKGROUND", spec.Background)
	writeSection(&buf, "INPUT", inputJSON)
	writeSection(&buf, "OUTPUT", formatFields(spec.OutputFields))
	writeSection(&buf, "CONSTRAINTS", formatList(spec.Constraints))
	writeSection(&buf, "RULES", formatList(spec.Rules))
	writeSection(&buf, "ASSUMPTIONS", formatList(spec.Assumptions))
	writeSection(&buf, "OUTPUT_FORMAT", spec.OutputFormat)
	writeSection(&buf, "LANGUAGE", spec.Language)

	return strings.TrimSpace(buf.String()) + "\n", nil
}

// ApplyDefaults fills in the shared boilerplate every stage prompt carries.
func ApplyDefaults(spec Spec) Spec {
	if strings.TrimSpace(spec.OutputFormat) == "" {
		spec.OutputFormat = "Return a single JSON object only. No markdown, no commentary."
	}
	if strings.TrimSpace(spec.Language) == "" {
		spec.Language = "English"
	}
	spec.Rules = append(spec.Rules,
		"Do not invent facts that are not supported by the input.",
		"When uncertain, prefer the clinically cautious interpretation.",
	)
	return spec
}

func formatAnyJSON(v any) (string, error) {
	if v == nil {
		return "null", nil
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func formatFields(fields []Field) string {
	var buf strings.Builder
	for _, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			continue
		}
		req := "optional"
		if f.Required {
			req = "required"
		}
		if f.Description != "" {
			fmt.Fprintf(&buf, "- %s (%s, %s): %s\n", name, f.Type, req, f.Description)
		} else {
			fmt.Fprintf(&buf, "- %s (%s, %s)\n", name, f.Type, req)
		}
	}
	return strings.TrimRight(buf.String(), "\n")
}

func formatList(items []string) string {
	var buf strings.Builder
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		fmt.Fprintf(&buf, "- %s\n", item)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func writeSection(buf *bytes.Buffer, title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	buf.WriteString("[")
	buf.WriteString(title)
	buf.WriteString("]\n")
	buf.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
}
