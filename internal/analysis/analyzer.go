// Package analysis runs the one-shot report analysis: retrieval context
// plus a fixed structured-output prompt, one generation call, raw text
// back. Table parsing happens downstream in the report package.
package analysis

import (
	"context"
	"fmt"

	"mediscan-backend/internal/faults"
	"mediscan-backend/internal/logger"
	"mediscan-backend/internal/retrieval"
	"mediscan-backend/internal/vectorindex"
)

// Generator is the generation provider capability. Implementations
// return typed faults for blocked and failed generations.
type Generator interface {
	GenerateText(ctx context.Context, modelName, prompt string) (string, error)
}

// AnalysisQuery is the fixed retrieval query; the user never supplies
// the analysis question.
const AnalysisQuery = "Provide a comprehensive analysis of this medical report, including summary, explanation, potential diagnoses, recommendations, and a detailed biomarker table following the specified format."

type Analyzer struct {
	gen       Generator
	modelName string
	topK      int
}

func NewAnalyzer(gen Generator, modelName string, topK int) *Analyzer {
	return &Analyzer{gen: gen, modelName: modelName, topK: topK}
}

// Analyze builds retrieval context over the chunks and asks the model
// for the structured analysis. The returned text is unparsed; the bool
// reports whether retrieval contributed or the full text was used.
func (a *Analyzer) Analyze(ctx context.Context, index *vectorindex.Index, chunks []string) (string, bool, error) {
	if a.gen == nil {
		return "", false, faults.New(faults.DependencyUnavailable, "analysis model unavailable")
	}
	if len(chunks) == 0 {
		return "", false, faults.New(faults.InputError, "no report text to analyze")
	}

	reportContext, usedRetrieval := retrieval.BuildContext(ctx, AnalysisQuery, index, chunks, a.topK)
	logger.Info("Analysis context assembled", "used_retrieval", usedRetrieval, "context_chars", len(reportContext))

	prompt := buildAnalysisPrompt(reportContext, AnalysisQuery)

	text, err := a.gen.GenerateText(ctx, a.modelName, prompt)
	if err != nil {
		logger.Error("Analysis generation failed", "kind", faults.KindOf(err), "error", err)
		return "", false, err
	}

	logger.Info("Analysis generated", "chars", len(text), "used_retrieval", usedRetrieval)
	return text, usedRetrieval, nil
}

// The output contract the table extractor depends on: fixed table title,
// fixed column order, three-tier risk labels, every parameter included.
func buildAnalysisPrompt(reportContext, query string) string {
	return fmt.Sprintf(`Analyze the following medical report context based on the user's query.

**Context from Report:**
`+"```"+`
%s
`+"```"+`

**User Query:**
%s

**Instructions:**
Provide the output in the following structured format:
1. Overall Summary (include all relevant details and parameters).
2. Explanation about the report (include all relevant details and parameters).
3. Potential Diagnoses
4. Medical Recommendations
Use color-coded risk levels (🟢 Normal, 🟡 Borderline, 🔴 Concerning) for each finding, and include a table.
Include ALL parameters from the report in the output table, with every reference range stated.
Do not exclude any parameters, even if they are within normal ranges.
Table format : Test | Value | Reference Range | Units | Risk Level | Note | Explanation
The Note column contains Normal, Borderline or Concerning matching the color in the Risk Level column.
Give title of table "Table Format with Color-Coded Risk Levels"
`, reportContext, query)
}
