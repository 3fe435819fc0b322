package agents

import (
	"context"
	"errors"
	"testing"

	"mediflow/internal/llmclient"
	"mediflow/internal/tester"
)

func TestTranslatorLive(t *testing.T) {
	fake := &llmclient.FakeClient{
		Default: llmclient.FakeReply{
			Text: `{"translatedText":"sharp chest pain since morning","emergencyKeywords":["chest pain"],"culturalNotes":""}`,
		},
	}
	out, outcome := Translator{LLM: fake, Model: "m1"}.Run(context.Background(), TranslateIn{
		Symptoms: "dolor agudo en el pecho desde la mañana",
		Language: "Spanish",
	})
	tester.False(t, outcome.Degraded, "live path")
	tester.Eq(t, outcome.Model, "m1")
	tester.Eq(t, out.TranslatedText, "sharp chest pain since morning")
	tester.Len(t, out.EmergencyKeywords, 1)
}

func TestTranslatorFallbackEnglishPassthrough(t *testing.T) {
	fake := &llmclient.FakeClient{Default: llmclient.FakeReply{Err: errors.New("boom")}}
	out, outcome := Translator{LLM: fake}.Run(context.Background(), TranslateIn{
		Symptoms: "mild headache since yesterday",
		Language: "English",
	})
	tester.True(t, outcome.Degraded, "fallback path")
	tester.Eq(t, out.TranslatedText, "mild headache since yesterday")
	tester.Len(t, out.EmergencyKeywords, 0)
}

func TestTranslatorFallbackMarksUntranslated(t *testing.T) {
	fake := &llmclient.FakeClient{Default: llmclient.FakeReply{Err: errors.New("boom")}}
	out, outcome := Translator{LLM: fake}.Run(context.Background(), TranslateIn{
		Symptoms: "dolor de pecho",
		Language: "Spanish",
	})
	tester.True(t, outcome.Degraded)
	tester.Eq(t, out.TranslatedText, "[untranslated:spanish] dolor de pecho")
	tester.Eq(t, out.EmergencyKeywords, []string{"dolor de pecho"})
}

func TestTranslatorFallbackOnEmptyTranslation(t *testing.T) {
	fake := &llmclient.FakeClient{Default: llmclient.FakeReply{Text: `{"translatedText":"  "}`}}
	out, outcome := Translator{LLM: fake}.Run(context.Background(), TranslateIn{
		Symptoms: "cough",
		Language: "en",
	})
	tester.True(t, outcome.Degraded, "empty translation falls back")
	tester.Eq(t, out.TranslatedText, "cough")
}

func TestTranslatorFallbackOnGarbageReply(t *testing.T) {
	fake := &llmclient.FakeClient{Default: llmclient.FakeReply{Text: "I cannot help with that."}}
	_, outcome := Translator{LLM: fake}.Run(context.Background(), TranslateIn{Symptoms: "fever", Language: "en"})
	tester.True(t, outcome.Degraded, "non-JSON reply falls back")
}

func TestDetectEmergencyKeywordsOrderAndCase(t *testing.T) {
	found := detectEmergencyKeywords("Sudden CHEST PAIN and difficulty breathing after exercise")
	tester.Eq(t, found, []string{"chest pain", "difficulty breathing"})
	tester.True(t, detectEmergencyKeywords("itchy elbow") == nil, "no false positives")
}

func TestTranslatorNilClientDegrades(t *testing.T) {
	var nilClient llmclient.Client
	out, outcome := Translator{LLM: nilClient}.Run(context.Background(), TranslateIn{
		Symptoms: "fever", Language: "en",
	})
	tester.True(t, outcome.Degraded)
	tester.Eq(t, out.TranslatedText, "fever")
}
