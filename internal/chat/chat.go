// Package chat runs the multi-turn conversational pipeline: per-turn
// retrieval, a response-policy prompt, disclaimer enforcement, and
// bounded session-state accumulation.
package chat

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"mediscan-backend/internal/faults"
	"mediscan-backend/internal/logger"
	"mediscan-backend/internal/retrieval"
	"mediscan-backend/internal/vectorindex"
)

// Generator is the generation provider capability, shared in shape with
// the analysis path but invoked with the chat policy prompt.
type Generator interface {
	GenerateText(ctx context.Context, modelName, prompt string) (string, error)
}

// noContextMarker stands in for report context when retrieval cannot
// serve the turn. The turn still proceeds.
const noContextMarker = "No specific context found in the report for this query."

// Disclaimer appended to replies that discuss health information.
const disclaimerText = "\n\n**Disclaimer:** This information is for educational purposes only and does not constitute medical advice. Always consult your doctor or other qualified health provider with any questions you may have regarding a medical condition or treatment."

// Reply shapes that never get the disclaimer appended.
var disclaimerExemptPrefixes = []string{
	"the provided report context does not contain specific information about",
	"based on the report context, the specific value for",
	"my response was blocked",
	"apologies, i received an empty",
}

type Orchestrator struct {
	gen       Generator
	modelName string
	topK      int
}

func NewOrchestrator(gen Generator, modelName string, topK int) *Orchestrator {
	return &Orchestrator{gen: gen, modelName: modelName, topK: topK}
}

// Turn answers one user query against the session's document. Session
// state mutates only on success; a blocked generation returns the
// blocked message as the reply without touching state.
func (o *Orchestrator) Turn(ctx context.Context, query string, index *vectorindex.Index, chunks []string, sess *Session) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", faults.New(faults.InputError, "please provide a query")
	}
	if o.gen == nil {
		return "", faults.New(faults.DependencyUnavailable, "chat model unavailable")
	}
	if index == nil || index.Count() == 0 {
		return "", faults.New(faults.DependencyUnavailable, "vector index unavailable")
	}
	if len(chunks) == 0 {
		return "", faults.New(faults.NotFound, "report content missing")
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	reportContext, contextFound := o.retrieveContext(ctx, query, index, chunks)

	prompt := buildChatPrompt(query, reportContext, contextFound, sess)

	reply, err := o.gen.GenerateText(ctx, o.modelName, prompt)
	if err != nil {
		if faults.Is(err, faults.ContentBlocked) {
			logger.Warn("Chat reply blocked", "error", err)
			return faults.UserMessage(err), nil
		}
		logger.Error("Chat generation failed", "kind", faults.KindOf(err), "error", err)
		return "", err
	}

	reply = ensureDisclaimer(reply)

	o.recordTurn(sess, query, reply)
	logger.Info("Chat turn completed", "history", len(sess.History), "topics", len(sess.Topics))
	return reply, nil
}

// retrieveContext degrades to the no-context marker instead of failing
// the turn when search errors or returns nothing usable.
func (o *Orchestrator) retrieveContext(ctx context.Context, query string, index *vectorindex.Index, chunks []string) (string, bool) {
	matches, err := index.Search(ctx, query, o.topK)
	if err != nil {
		logger.Warn("Chat retrieval failed, degrading to no-context turn", "error", err)
		return noContextMarker, false
	}

	var selected []string
	for _, m := range matches {
		if m.RowID < 0 || m.RowID >= len(chunks) {
			continue
		}
		selected = append(selected, chunks[m.RowID])
	}
	if len(selected) == 0 {
		return noContextMarker, false
	}
	return strings.Join(selected, retrieval.SectionDelimiter), true
}

// recordTurn mutates session state under the already-held lock.
func (o *Orchestrator) recordTurn(sess *Session, query, reply string) {
	sess.History = append(sess.History, Exchange{User: query, Assistant: reply})
	if len(sess.History) > historyCap {
		sess.History = sess.History[len(sess.History)-historyCap:]
	}

	for _, rec := range extractRecommendations(reply) {
		if !contains(sess.Recommendations, rec) {
			sess.Recommendations = append(sess.Recommendations, rec)
		}
	}
	if len(sess.Recommendations) > recommendationCap {
		sess.Recommendations = sess.Recommendations[len(sess.Recommendations)-recommendationCap:]
	}

	sess.Topics = mergeTopics(sess.Topics, extractTopics(query+" "+reply))
}

func buildChatPrompt(query, reportContext string, contextFound bool, sess *Session) string {
	conversationHistory := "No previous turns."
	if len(sess.History) > 0 {
		window := sess.History
		if len(window) > historyWindow {
			window = window[len(window)-historyWindow:]
		}
		var sb strings.Builder
		sb.WriteString("Previous Conversation Turn(s):\n")
		for _, ex := range window {
			fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n\n", ex.User, truncateRunes(ex.Assistant, assistantTruncate))
		}
		conversationHistory = strings.TrimSpace(sb.String())
	}

	var summary strings.Builder
	if len(sess.Recommendations) > 0 {
		fmt.Fprintf(&summary, "\nPrev Recs: %s", strings.Join(sess.Recommendations, ", "))
	}
	if len(sess.Topics) > 0 {
		fmt.Fprintf(&summary, "\nPrev Topics: %s", strings.Join(sess.Topics, ", "))
	}

	contextAvailable := "No"
	if contextFound {
		contextAvailable = "Yes"
	}

	return fmt.Sprintf(`You are MediScan AI, a helpful assistant analyzing medical report data AND providing general health information.

**CORE TASK:** Answer the user's question accurately and safely.

**CONTEXT:**
1.  **Medical Report Context:** Specific data extracted from the user's uploaded report. THIS IS THE PRIMARY SOURCE for questions about the report itself.
`+"```"+`
%s
`+"```"+`
(Context Available in Report: %s)

2.  **Previous Conversation Context:** Recent chat history and topics.
%s
%s

**RESPONSE RULES & PERSONA:**

1.  **Report-Specific Questions:** If the question is clearly about the *content* of the report (e.g., "What was my hemoglobin level?", "What did the report say about RBC morphology?"), answer *strictly* based on the "Medical Report Context". State if the information isn't present.
2.  **General Information Questions:** If the question asks for general knowledge about a medical term, test, or condition (e.g., "What is Hemoglobin (Hb)?", "What causes high cholesterol?"), provide a helpful, accurate, and neutral explanation based on general medical understanding. *Briefly check* if the report context mentions the term and include that if relevant (e.g., "Hemoglobin (Hb) is... Your report showed a value of X.").
3.  **"How to Improve" Questions:** If the user asks how to improve a health parameter (e.g., "How to increase Hemoglobin?", "Ways to lower cholesterol?"), provide *general lifestyle and dietary suggestions* commonly associated with that parameter (e.g., iron-rich foods for Hb, balanced diet/exercise for cholesterol). You MAY include *general, conceptual* mentions of relevant nutrients or traditional approaches (like specific Ayurvedic herbs known for general wellness related to the topic, e.g., Ashwagandha for stress, Amla for Vitamin C/immunity) BUT frame them as "commonly discussed" or "traditionally used for general wellness" NOT as direct treatments or guaranteed solutions. **Avoid specific dosages or preparations.**
4.  **"Should I..." / Advice Questions:** If the user asks for direct medical advice (e.g., "Should I consult a doctor?", "Is this result serious?", "Do I need medication?"):
    *   **NEVER give a direct 'yes' or 'no' answer.**
    *   **Start by stating you cannot give medical advice.** (e.g., "As an AI, I cannot provide medical advice or tell you definitively whether to consult a doctor.")
    *   **THEN, provide relevant GENERAL information:** Briefly explain what the parameter/finding typically relates to (e.g., "Low hemoglobin, as indicated in your report, is often associated with anemia...") OR discuss factors generally considered when deciding to consult a doctor about such results (e.g., "Factors physicians often consider include the specific value, other related results, symptoms, and medical history.")
    *   **Strongly recommend consultation:** Conclude by emphasizing the importance of discussing the specific results and concerns with a qualified healthcare professional.
5.  **Safety First:** Prioritize user safety. Avoid definitive diagnoses, treatment plans, or specific medical instructions.
6.  **Clarity & Tone:** Be clear, informative, helpful, and empathetic, but maintain professional boundaries. Use Markdown for formatting (bolding, lists).
7.  **MANDATORY DISCLAIMER:** Include the following disclaimer at the end of **every** response that provides *any* general information or discusses health parameters (i.e., responds under Rules 2, 3, or 4):
    `+"`"+`%s`+"`"+`

--- END RULES ---

**User Question:** %s

--- Assistant Response (Follow Rules carefully): ---
`, reportContext, contextAvailable, conversationHistory, strings.TrimSpace(summary.String()), strings.TrimSpace(disclaimerText), query)
}

// ensureDisclaimer appends the disclaimer unless the reply already has
// one or matches an exempted shape.
func ensureDisclaimer(reply string) string {
	if strings.Contains(reply, "Disclaimer:") {
		return reply
	}
	lower := strings.ToLower(strings.TrimSpace(reply))
	if len(lower) < 50 {
		return reply
	}
	for _, prefix := range disclaimerExemptPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return reply
		}
	}
	return reply + disclaimerText
}

// truncateRunes cuts s to at most limit bytes without splitting a rune.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
