package chat

import (
	"context"
	"sort"
	"strings"
	"testing"
	"unicode/utf8"

	"mediscan-backend/internal/faults"
	"mediscan-backend/internal/vectorindex"
)

type stubGenerator struct {
	reply      string
	err        error
	lastPrompt string
	calls      int
}

func (s *stubGenerator) GenerateText(_ context.Context, _, prompt string) (string, error) {
	s.calls++
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type stubEmbedder struct {
	dim int
	err error
}

func (s *stubEmbedder) Dimension() int { return s.dim }

func (s *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	v := make([]float32, s.dim)
	v[0] = float32(len(text) % 7)
	return v, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func readyIndex(t *testing.T, chunks []string) *vectorindex.Index {
	t.Helper()
	ix := vectorindex.New(&stubEmbedder{dim: 2})
	if err := ix.Build(context.Background(), chunks); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return ix
}

func TestTurnGuardsAreDistinct(t *testing.T) {
	chunks := []string{"chunk one", "chunk two"}
	ix := readyIndex(t, chunks)
	gen := &stubGenerator{reply: "fine"}

	tests := []struct {
		name  string
		query string
		orch  *Orchestrator
		index *vectorindex.Index
		docs  []string
		kind  faults.Kind
	}{
		{"empty query", "  ", NewOrchestrator(gen, "m", 5), ix, chunks, faults.InputError},
		{"missing generator", "q", NewOrchestrator(nil, "m", 5), ix, chunks, faults.DependencyUnavailable},
		{"missing index", "q", NewOrchestrator(gen, "m", 5), nil, chunks, faults.DependencyUnavailable},
		{"missing chunks", "q", NewOrchestrator(gen, "m", 5), ix, nil, faults.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.orch.Turn(context.Background(), tt.query, tt.index, tt.docs, NewSession())
			if !faults.Is(err, tt.kind) {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
		})
	}
}

func TestTurnAppendsExactlyOneExchange(t *testing.T) {
	chunks := []string{"hemoglobin chunk", "glucose chunk"}
	ix := readyIndex(t, chunks)
	gen := &stubGenerator{reply: "Your hemoglobin sits within the normal reference range for adults."}
	o := NewOrchestrator(gen, "m", 5)
	sess := NewSession()

	reply, err := o.Turn(context.Background(), "what is my hemoglobin", ix, chunks, sess)
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if len(sess.History) != 1 {
		t.Fatalf("one successful turn should append one exchange, got %d", len(sess.History))
	}
	if sess.History[0].User != "what is my hemoglobin" || sess.History[0].Assistant != reply {
		t.Error("history must record the query and the post-processed reply")
	}
}

func TestTurnFailureDoesNotMutateState(t *testing.T) {
	chunks := []string{"chunk"}
	ix := readyIndex(t, chunks)
	gen := &stubGenerator{err: faults.New(faults.ProviderError, "quota exceeded")}
	o := NewOrchestrator(gen, "m", 5)
	sess := NewSession()

	if _, err := o.Turn(context.Background(), "question", ix, chunks, sess); err == nil {
		t.Fatal("provider failure should surface as error")
	}
	if len(sess.History) != 0 || len(sess.Topics) != 0 || len(sess.Recommendations) != 0 {
		t.Error("failed turn must leave session state untouched")
	}
}

func TestTurnBlockedReturnsMessageWithoutMutation(t *testing.T) {
	chunks := []string{"chunk"}
	ix := readyIndex(t, chunks)
	gen := &stubGenerator{err: faults.New(faults.ContentBlocked, "safety")}
	o := NewOrchestrator(gen, "m", 5)
	sess := NewSession()

	reply, err := o.Turn(context.Background(), "question", ix, chunks, sess)
	if err != nil {
		t.Fatalf("blocked turn should not fail: %v", err)
	}
	if !strings.Contains(reply, "blocked due to content safety filters") {
		t.Errorf("blocked turn should say so, got %q", reply)
	}
	if len(sess.History) != 0 {
		t.Error("blocked turn must not mutate history")
	}
}

func TestTurnDegradesWhenRetrievalFails(t *testing.T) {
	chunks := []string{"chunk"}
	emb := &stubEmbedder{dim: 2}
	ix := vectorindex.New(emb)
	if err := ix.Build(context.Background(), chunks); err != nil {
		t.Fatal(err)
	}
	emb.err = faults.New(faults.ProviderError, "embedding down")

	gen := &stubGenerator{reply: "General information about hemoglobin levels and what they mean."}
	o := NewOrchestrator(gen, "m", 5)

	if _, err := o.Turn(context.Background(), "question", ix, chunks, NewSession()); err != nil {
		t.Fatalf("retrieval failure must not abort the turn: %v", err)
	}
	if !strings.Contains(gen.lastPrompt, noContextMarker) {
		t.Error("degraded turn should carry the no-context marker in the prompt")
	}
	if !strings.Contains(gen.lastPrompt, "(Context Available in Report: No)") {
		t.Error("prompt should flag that no report context was found")
	}
}

func TestPromptCarriesHistoryWindowTruncated(t *testing.T) {
	chunks := []string{"chunk"}
	ix := readyIndex(t, chunks)
	gen := &stubGenerator{reply: "A sufficiently long reply about health values in the report today."}
	o := NewOrchestrator(gen, "m", 5)
	sess := NewSession()

	long := strings.Repeat("y", 300)
	for i := 0; i < 6; i++ {
		sess.History = append(sess.History, Exchange{User: "old question", Assistant: long})
	}
	sess.History[5].User = "newest question"

	if _, err := o.Turn(context.Background(), "follow up", ix, chunks, sess); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	if !strings.Contains(gen.lastPrompt, "newest question") {
		t.Error("latest exchange must appear in the prompt window")
	}
	if strings.Count(gen.lastPrompt, "old question") > 3 {
		t.Error("only the last 4 exchanges belong in the prompt")
	}
	if strings.Contains(gen.lastPrompt, strings.Repeat("y", 201)) {
		t.Error("assistant turns in the window must truncate at 200 chars")
	}
}

func TestHistoryCapAtTwenty(t *testing.T) {
	chunks := []string{"chunk"}
	ix := readyIndex(t, chunks)
	gen := &stubGenerator{reply: "A sufficiently long reply mentioning glucose in general terms."}
	o := NewOrchestrator(gen, "m", 5)
	sess := NewSession()

	for i := 0; i < 25; i++ {
		if _, err := o.Turn(context.Background(), "question about glucose", ix, chunks, sess); err != nil {
			t.Fatalf("turn %d failed: %v", i, err)
		}
	}
	if len(sess.History) != 20 {
		t.Errorf("history must cap at 20, got %d", len(sess.History))
	}
}

func TestDisclaimerAppendedAndExemptions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"general info gets disclaimer", "Hemoglobin carries oxygen through the blood and low values may indicate anemia in some cases.", true},
		{"already has one", "Info here.\n\n**Disclaimer:** already present and long enough to not be short.", false},
		{"short reply exempt", "Yes, 13.5 g/dL.", false},
		{"absence statement exempt", "The provided report context does not contain specific information about vitamin D levels in this document.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ensureDisclaimer(tt.in)
			appended := strings.Count(got, "Disclaimer:") > strings.Count(tt.in, "Disclaimer:")
			if appended != tt.want {
				t.Errorf("appended = %v, want %v (got %q)", appended, tt.want, got)
			}
		})
	}
}

func TestTopicsAccumulateWithComposites(t *testing.T) {
	chunks := []string{"chunk"}
	ix := readyIndex(t, chunks)
	gen := &stubGenerator{reply: "Your ALT and AST values relate to how the liver processes enzymes over time."}
	o := NewOrchestrator(gen, "m", 5)
	sess := NewSession()

	if _, err := o.Turn(context.Background(), "tell me about my alt", ix, chunks, sess); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	for _, want := range []string{"alt", "ast", "liver function"} {
		if !contains(sess.Topics, want) {
			t.Errorf("topics missing %q, got %v", want, sess.Topics)
		}
	}
	if !sort.StringsAreSorted(sess.Topics) {
		t.Error("topics must stay sorted")
	}
}

func TestHistoryTruncationKeepsRunesIntact(t *testing.T) {
	// The leading ASCII byte shifts every rune to an odd offset, so the
	// byte limit lands inside a two-byte rune.
	assistant := "a" + strings.Repeat("é", 150)
	sess := NewSession()
	sess.History = append(sess.History, Exchange{User: "previous question", Assistant: assistant})

	prompt := buildChatPrompt("next question", "context", true, sess)
	if !utf8.ValidString(prompt) {
		t.Error("prompt must stay valid UTF-8 after history truncation")
	}

	got := truncateRunes(assistant, assistantTruncate)
	if !utf8.ValidString(got) {
		t.Errorf("truncation split a rune: %q", got[len(got)-3:])
	}
	if len(got) != assistantTruncate-1 {
		t.Errorf("expected the cut to back up to the rune boundary, got %d bytes", len(got))
	}
}
