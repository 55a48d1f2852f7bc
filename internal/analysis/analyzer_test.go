package analysis

import (
	"context"
	"strings"
	"testing"

	"mediscan-backend/internal/faults"
	"mediscan-backend/internal/vectorindex"
)

type stubGenerator struct {
	reply      string
	err        error
	lastPrompt string
	lastModel  string
	calls      int
}

func (s *stubGenerator) GenerateText(_ context.Context, modelName, prompt string) (string, error) {
	s.calls++
	s.lastModel = modelName
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func TestAnalyzeGuards(t *testing.T) {
	a := NewAnalyzer(nil, "model", 7)
	if _, _, err := a.Analyze(context.Background(), nil, []string{"chunk"}); !faults.Is(err, faults.DependencyUnavailable) {
		t.Errorf("missing generator should be DependencyUnavailable, got %v", err)
	}

	a = NewAnalyzer(&stubGenerator{reply: "ok"}, "model", 7)
	if _, _, err := a.Analyze(context.Background(), nil, nil); !faults.Is(err, faults.InputError) {
		t.Errorf("empty chunks should be InputError, got %v", err)
	}
}

func TestAnalyzePromptContract(t *testing.T) {
	gen := &stubGenerator{reply: "analysis text"}
	a := NewAnalyzer(gen, "gemini-2.0-flash", 7)

	chunks := []string{"Hemoglobin 13.5 g/dL (12-16)", "Glucose 110 mg/dL (70-100)"}
	got, usedRetrieval, err := a.Analyze(context.Background(), nil, chunks)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if usedRetrieval {
		t.Error("no index was given, so retrieval cannot have contributed")
	}
	if got != "analysis text" {
		t.Errorf("analysis text should come back unparsed, got %q", got)
	}
	if gen.calls != 1 {
		t.Errorf("exactly one generation call expected, got %d", gen.calls)
	}
	if gen.lastModel != "gemini-2.0-flash" {
		t.Errorf("model = %q", gen.lastModel)
	}

	for _, anchor := range []string{
		"Hemoglobin 13.5",
		"Glucose 110",
		"🟢 Normal, 🟡 Borderline, 🔴 Concerning",
		"Test | Value | Reference Range | Units | Risk Level | Note | Explanation",
		`"Table Format with Color-Coded Risk Levels"`,
		"Do not exclude any parameters",
		AnalysisQuery,
	} {
		if !strings.Contains(gen.lastPrompt, anchor) {
			t.Errorf("prompt missing %q", anchor)
		}
	}
}

func TestAnalyzePassesThroughTypedFailures(t *testing.T) {
	gen := &stubGenerator{err: faults.New(faults.ContentBlocked, "prompt blocked: SAFETY")}
	a := NewAnalyzer(gen, "model", 7)

	_, _, err := a.Analyze(context.Background(), nil, []string{"chunk"})
	if !faults.Is(err, faults.ContentBlocked) {
		t.Errorf("blocked generation must stay ContentBlocked, got %v", err)
	}
}

type constantEmbedder struct{ dim int }

func (e *constantEmbedder) Dimension() int { return e.dim }

func (e *constantEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	vec[0] = float32(len(text) % 7)
	return vec, nil
}

func (e *constantEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func TestAnalyzeReportsRetrievalUse(t *testing.T) {
	gen := &stubGenerator{reply: "analysis text"}
	a := NewAnalyzer(gen, "model", 2)

	chunks := []string{"Hemoglobin 13.5", "Glucose 110"}
	index := vectorindex.New(&constantEmbedder{dim: 3})
	if err := index.Build(context.Background(), chunks); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	_, usedRetrieval, err := a.Analyze(context.Background(), index, chunks)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if !usedRetrieval {
		t.Error("a populated index serving the query should report retrieval use")
	}
}
