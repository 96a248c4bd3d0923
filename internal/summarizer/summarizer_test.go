package summarizer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"

	"github.com/deusflow/rundown/internal/cache"
	"github.com/deusflow/rundown/internal/ratelimit"
)

type fakeGenerator struct {
	resp   *genai.GenerateContentResponse
	err    error
	prompt string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	if len(parts) > 0 {
		if t, ok := parts[0].(genai.Text); ok {
			f.prompt = string(t)
		}
	}
	return f.resp, f.err
}

func candidate(parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

func TestGemini_Summarize(t *testing.T) {
	gen := &fakeGenerator{resp: candidate(genai.Text("The city approved "), genai.Text("a new budget."))}
	g := &Gemini{model: gen}

	got, err := g.Summarize(context.Background(), "article body")
	if err != nil {
		t.Fatal(err)
	}
	if got != "The city approved a new budget." {
		t.Errorf("summary = %q", got)
	}
	if !strings.HasPrefix(gen.prompt, Prompt) || !strings.HasSuffix(gen.prompt, "article body") {
		t.Errorf("unexpected prompt %q", gen.prompt)
	}
}

func TestGemini_NoCandidatesIsEmpty(t *testing.T) {
	for name, resp := range map[string]*genai.GenerateContentResponse{
		"no candidates": {},
		"nil content":   {Candidates: []*genai.Candidate{{}}},
	} {
		t.Run(name, func(t *testing.T) {
			g := &Gemini{model: &fakeGenerator{resp: resp}}
			got, err := g.Summarize(context.Background(), "x")
			if err != nil || got != "" {
				t.Errorf("got %q, %v; want empty, nil", got, err)
			}
		})
	}
}

func TestGemini_BlockedIsEmpty(t *testing.T) {
	g := &Gemini{model: &fakeGenerator{err: &genai.BlockedError{}}}
	got, err := g.Summarize(context.Background(), "x")
	if err != nil || got != "" {
		t.Errorf("got %q, %v; want empty, nil", got, err)
	}
}

func TestGemini_UpstreamError(t *testing.T) {
	g := &Gemini{model: &fakeGenerator{err: errors.New("quota")}}
	if _, err := g.Summarize(context.Background(), "x"); err == nil {
		t.Error("expected error")
	}
}

type fakeChat struct {
	resp openai.ChatCompletionResponse
	req  openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, nil
}

func TestOpenAI_Summarize(t *testing.T) {
	chat := &fakeChat{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "  A short paragraph.  "}}},
	}}
	o := &OpenAI{client: chat, model: "test-model"}

	got, err := o.Summarize(context.Background(), "body")
	if err != nil {
		t.Fatal(err)
	}
	if got != "A short paragraph." {
		t.Errorf("summary = %q", got)
	}
	if chat.req.Model != "test-model" || chat.req.MaxTokens != 1024 {
		t.Errorf("unexpected request %+v", chat.req)
	}

	chat.resp = openai.ChatCompletionResponse{}
	if got, _ := o.Summarize(context.Background(), "body"); got != "" {
		t.Errorf("no choices should give empty summary, got %q", got)
	}
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"Summary: The plan passed.":                                "The plan passed.",
		"The plan passed.\nNote: This is an AI generated summary.": "The plan passed.",
		"The plan (Note: details may vary) passed.":                "The plan passed.",
		"[Note: machine generated] The plan passed.":               "The plan passed.",
		"The plan\n\n   passed   today.":                           "The plan passed today.",
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

type countingSummarizer struct {
	calls   int
	summary string
}

func (c *countingSummarizer) Summarize(context.Context, string) (string, error) {
	c.calls++
	return c.summary, nil
}

func TestCached_ReusesSummary(t *testing.T) {
	c := cache.New(time.Hour)
	defer c.Stop()
	limiter := ratelimit.NewAIRateLimiter(nil, 0)
	inner := &countingSummarizer{summary: "s"}
	s := NewCached(inner, c, time.Hour, limiter)

	for i := 0; i < 3; i++ {
		if got, _ := s.Summarize(context.Background(), "same text"); got != "s" {
			t.Fatalf("got %q", got)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner called %d times, want 1", inner.calls)
	}
	if hits := limiter.Stats().CacheHits; hits != 2 {
		t.Errorf("cache hits = %d, want 2", hits)
	}
}

func TestCached_SkipsEmpty(t *testing.T) {
	c := cache.New(time.Hour)
	defer c.Stop()
	inner := &countingSummarizer{}
	s := NewCached(inner, c, time.Hour, nil)

	_, _ = s.Summarize(context.Background(), "t")
	_, _ = s.Summarize(context.Background(), "t")
	if inner.calls != 2 {
		t.Errorf("empty summaries must not be cached, calls=%d", inner.calls)
	}
}

func TestLimited_StopsAtBudget(t *testing.T) {
	limiter := ratelimit.NewAIRateLimiter(map[string]int{"gemini": 1}, 0)
	s := NewLimited(&countingSummarizer{summary: "s"}, limiter, "gemini")

	if _, err := s.Summarize(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Summarize(context.Background(), "b"); !errors.Is(err, ratelimit.ErrLimitExceeded) {
		t.Errorf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestCached_SharedAcrossRuns(t *testing.T) {
	c := cache.New(time.Hour)
	defer c.Stop()
	inner := &countingSummarizer{summary: "s"}

	for run := 0; run < 2; run++ {
		limiter := ratelimit.NewAIRateLimiter(map[string]int{"gemini": 1}, 0)
		s := NewCached(NewLimited(inner, limiter, "gemini"), c, time.Hour, limiter)
		if got, err := s.Summarize(context.Background(), "same text"); err != nil || got != "s" {
			t.Fatalf("run %d: got %q, %v", run, got, err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner called %d times across runs, want 1", inner.calls)
	}
}
