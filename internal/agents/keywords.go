package agents

import "strings"

// emergencyKeywords is the fixed multilingual substring table used by the
// fallback paths. Presence of any entry in the symptom text unconditionally
// elevates urgency.
var emergencyKeywords = []string{
	// English
	"chest pain",
	"difficulty breathing",
	"can't breathe",
	"cannot breathe",
	"shortness of breath",
	"unconscious",
	"severe bleeding",
	"stroke",
	"heart attack",
	"seizure",
	"suicidal",
	// Spanish
	"dolor de pecho",
	"dificultad para respirar",
	"sangrado abundante",
	"inconsciente",
	// French
	"douleur thoracique",
	"difficulte a respirer",
	"difficulté à respirer",
	"saignement abondant",
	// Portuguese
	"dor no peito",
	"falta de ar",
	// Swahili
	"maumivu ya kifua",
	"kushindwa kupumua",
	// Hindi (transliterated)
	"seene mein dard",
	"saans lene mein dikkat",
}

// detectEmergencyKeywords returns the table entries present in text,
// case-insensitively, preserving table order so the output is deterministic.
func detectEmergencyKeywords(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range emergencyKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}
