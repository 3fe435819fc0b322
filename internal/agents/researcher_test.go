package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mediflow/internal/llmclient"
	"mediflow/internal/tester"
)

func TestResearcherLiveClampsEvidence(t *testing.T) {
	fake := &llmclient.FakeClient{
		Default: llmclient.FakeReply{
			Text: `{"findings":[{"title":"Dengue review","evidenceLevel":9,"source":"meta-analysis"}],"outbreaks":["dengue"]}`,
		},
	}
	out, outcome := Researcher{LLM: fake}.Run(context.Background(), ResearchIn{Text: "fever"})
	tester.False(t, outcome.Degraded)
	tester.Eq(t, out.Findings[0].EvidenceLevel, 5)
	tester.Eq(t, out.Outbreaks, []string{"dengue"})
}

func TestResearcherLiveNormalizesNilSlices(t *testing.T) {
	fake := &llmclient.FakeClient{Default: llmclient.FakeReply{Text: `{"regionalNotes":"none"}`}}
	out, outcome := Researcher{LLM: fake}.Run(context.Background(), ResearchIn{Text: "rash"})
	tester.False(t, outcome.Degraded)
	tester.True(t, out.Findings != nil, "findings is never nil")
	tester.True(t, out.Outbreaks != nil, "outbreaks is never nil")
}

func TestResearcherFallbackRegionalNotes(t *testing.T) {
	fake := &llmclient.FakeClient{Default: llmclient.FakeReply{Err: errors.New("down")}}
	out, outcome := Researcher{LLM: fake}.Run(context.Background(), ResearchIn{
		Text:     "high fever and chills",
		Location: "Lagos, Nigeria",
	})
	tester.True(t, outcome.Degraded)
	tester.Len(t, out.Findings, 0)
	tester.True(t, strings.Contains(out.RegionalNotes, "malaria"), "regional note mentions malaria: %q")
}

func TestResearcherFallbackNoMatch(t *testing.T) {
	fake := &llmclient.FakeClient{Default: llmclient.FakeReply{Err: errors.New("down")}}
	out, _ := Researcher{LLM: fake}.Run(context.Background(), ResearchIn{Text: "sore wrist", Location: "Oslo"})
	tester.Eq(t, out.RegionalNotes, "")
	tester.Len(t, out.Findings, 0)
	tester.Len(t, out.Outbreaks, 0)
}
