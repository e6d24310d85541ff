package request

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNormalizeEffort(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		enabled bool
	}{
		{"NONE ", "", false},
		{" High ", "high", true},
		{"", "", false},
		{"off", "", false},
		{"false", "", false},
		{"0", "", false},
		{"disable", "", false},
		{"disabled", "", false},
		{"xhigh", "xhigh", true},
		{"bogus", "bogus", true},
	}
	for _, c := range cases {
		got, enabled := NormalizeEffort(c.in)
		if got != c.want || enabled != c.enabled {
			t.Errorf("NormalizeEffort(%q) = (%q, %v), want (%q, %v)", c.in, got, enabled, c.want, c.enabled)
		}
	}
}

func TestEffortFor_DowngradesXHigh(t *testing.T) {
	// o3-pro supports low/medium/high but not xhigh.
	got, ok := EffortFor("o3-pro", "xhigh")
	if !ok || got != "high" {
		t.Errorf("EffortFor(o3-pro, xhigh) = (%q, %v), want (high, true)", got, ok)
	}
}

func TestEffortFor_UnsupportedValueDisables(t *testing.T) {
	got, ok := EffortFor("gpt-5.2", "bogus")
	if ok {
		t.Errorf("EffortFor(gpt-5.2, bogus) = (%q, true), want disabled", got)
	}
}

func TestEffortFor_UnknownModelDisables(t *testing.T) {
	if _, ok := EffortFor("some-future-model", "high"); ok {
		t.Error("EffortFor should omit reasoning for models outside the capability table")
	}
}

func TestEffortFor_PassThrough(t *testing.T) {
	got, ok := EffortFor("gpt-5.2-pro", " XHIGH ")
	if !ok || got != "xhigh" {
		t.Errorf("EffortFor(gpt-5.2-pro, XHIGH) = (%q, %v), want (xhigh, true)", got, ok)
	}
}

func TestEncode_SingleLine(t *testing.T) {
	line := NewLine(Params{
		CustomID:        "req-abc12345",
		Prompt:          "first\nsecond",
		Instructions:    "You are a helpful assistant.",
		Model:           "gpt-5.2-pro",
		MaxOutputTokens: 100000,
		ReasoningEffort: "high",
	})

	data, err := line.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s := string(data)
	if !strings.HasSuffix(s, "\n") {
		t.Error("encoded line must end with a trailing newline")
	}
	if strings.Count(s, "\n") != 1 {
		t.Errorf("encoded line must contain exactly one newline, got %d", strings.Count(s, "\n"))
	}

	var decoded Line
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decoding encoded line: %v", err)
	}
	if decoded.Method != "POST" || decoded.URL != EndpointResponses {
		t.Errorf("method/url = %q %q, want POST %q", decoded.Method, decoded.URL, EndpointResponses)
	}
	if decoded.Body.Input != "first\nsecond" {
		t.Errorf("input = %q, prompt newlines must survive encoding", decoded.Body.Input)
	}
	if decoded.Body.Reasoning == nil || decoded.Body.Reasoning.Effort != "high" {
		t.Errorf("reasoning = %+v, want effort high", decoded.Body.Reasoning)
	}
}

func TestNewLine_DisabledReasoningOmitsField(t *testing.T) {
	line := NewLine(Params{
		CustomID:        "req-1",
		Model:           "gpt-5.2-pro",
		MaxOutputTokens: 1000,
		ReasoningEffort: "none",
	})
	data, err := line.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(string(data), "reasoning") {
		t.Errorf("disabled reasoning must omit the field entirely, got %s", data)
	}
}

func TestNewLine_WebSearchTool(t *testing.T) {
	line := NewLine(Params{
		CustomID:             "req-1",
		Model:                "gpt-5.2",
		MaxOutputTokens:      1000,
		WebSearch:            true,
		WebSearchContextSize: "medium",
	})
	if len(line.Body.Tools) != 1 || line.Body.Tools[0].Type != "web_search" {
		t.Fatalf("tools = %+v, want a single web_search tool", line.Body.Tools)
	}
	if line.Body.Tools[0].SearchContextSize != "medium" {
		t.Errorf("search_context_size = %q, want medium", line.Body.Tools[0].SearchContextSize)
	}
}

func TestEstimateCost(t *testing.T) {
	in, out, total, ok := EstimateCost("gpt-5.2", 1_000_000, 1_000_000)
	if !ok {
		t.Fatal("expected pricing for gpt-5.2")
	}
	if in != 0.875 || out != 7.00 || total != 7.875 {
		t.Errorf("cost = %v/%v/%v, want 0.875/7/7.875", in, out, total)
	}

	if _, _, _, ok := EstimateCost("unknown-model", 1, 1); ok {
		t.Error("unknown model must report no pricing")
	}
}
