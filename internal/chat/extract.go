package chat

import (
	"regexp"
	"sort"
	"strings"
)

var recommendationMarkers = []string{
	"recommendations:", "plan:", "suggestions:", "medical recommendations:", "lifestyle considerations:",
}

var disclaimerPhrases = []string{
	"disclaimer:", "this information is for", "consult your doctor",
}

var (
	bulletRegex = regexp.MustCompile(`^(?:\d+\.|[*\-•])\s*`)
	numberedRe  = regexp.MustCompile(`^\d+\.\s+`)
)

// extractRecommendations returns the bullet or numbered lines under a
// recommendations-style header, stopping before any disclaimer-like
// line. Markup is stripped and duplicates removed, order preserved.
func extractRecommendations(text string) []string {
	var recommendations []string
	inSection := false
	seen := make(map[string]bool)

	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)
		lower := strings.ToLower(stripped)

		if containsAny(lower, disclaimerPhrases) {
			break
		}
		if containsAny(lower, recommendationMarkers) {
			inSection = true
			continue
		}
		if !inSection || stripped == "" {
			continue
		}

		if strings.HasPrefix(stripped, "*") || strings.HasPrefix(stripped, "-") ||
			strings.HasPrefix(stripped, "•") || numberedRe.MatchString(stripped) {
			rec := strings.TrimSpace(bulletRegex.ReplaceAllString(stripped, ""))
			if len(rec) > 10 && !seen[rec] {
				seen[rec] = true
				recommendations = append(recommendations, rec)
			}
		}
	}
	return recommendations
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// Fixed vocabulary of domain terms matched as whole words, with an
// optional plural s.
var medicalTopics = []string{
	"fatigue", "diabetes", "hypertension", "anemia", "infection", "inflammation", "cancer", "tumor",
	"hypothyroid", "hyperthyroid", "cholesterol", "obesity", "pain", "fever", "headache", "leucopenia",
	"microcytic", "hypochromic", "glucose", "a1c", "hemoglobin", "wbc", "rbc", "platelet", "cbc",
	"bmp", "cmp", "hematocrit", "hct", "ldl", "hdl", "triglycerides", "lipid panel",
	"packed cell volume", "pcv", "creatinine", "bun", "gfr", "kidney function", "renal", "mcv", "mch",
	"mchc", "rdw", "alt", "ast", "bilirubin", "liver function", "hepatic", "platelet count", "mpv",
	"pct", "pdw-sd", "pdw-cv", "p-lcc", "p-lcr", "tsh", "t3", "t4", "thyroid function", "sodium",
	"potassium", "chloride", "electrolytes", "crp", "esr", "iron", "ferritin", "b12", "folate", "psa",
	"biopsy", "imaging", "scan", "x-ray", "mri", "ct scan", "ultrasound", "medication", "prescription",
	"treatment", "therapy", "surgery", "lifestyle modification", "diet", "nutrition", "exercise",
	"hydration", "sleep", "stress management", "report", "summary", "findings", "observation",
	"impression", "diagnosis", "prognosis", "recommendation", "plan", "follow up", "consultation",
	"doctor", "physician", "specialist", "risk level", "reference range", "units", "value", "result",
	"parameter", "wellness", "health", "immunity", "ayurveda", "home remedy", "ashwagandha", "amla",
}

// Composite categories implied by the presence of any member term.
var compositeTopics = []struct {
	name    string
	members []string
}{
	{"liver function", []string{"alt", "ast", "bilirubin"}},
	{"kidney function", []string{"creatinine", "gfr", "bun"}},
	{"cbc", []string{"wbc", "rbc", "platelet", "hemoglobin", "hematocrit", "hct", "pcv"}},
	{"lipid panel", []string{"ldl", "hdl", "triglycerides"}},
	{"rbc indices", []string{"mcv", "mch", "mchc", "rdw"}},
	{"platelet indices", []string{"mpv", "pct", "pdw-sd", "pdw-cv"}},
}

var topicPatterns = compileTopicPatterns()

func compileTopicPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(medicalTopics))
	for _, topic := range medicalTopics {
		patterns[topic] = regexp.MustCompile(`\b` + regexp.QuoteMeta(topic) + `(?:s)?\b`)
	}
	return patterns
}

// extractTopics matches the text against the topic vocabulary and adds
// the implied composite categories.
func extractTopics(text string) []string {
	lower := strings.ToLower(text)
	found := make(map[string]bool)
	for topic, pattern := range topicPatterns {
		if pattern.MatchString(lower) {
			found[topic] = true
		}
	}

	for _, composite := range compositeTopics {
		for _, member := range composite.members {
			if found[member] {
				found[composite.name] = true
				break
			}
		}
	}

	topics := make([]string, 0, len(found))
	for t := range found {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// mergeTopics unions new topics into the existing set, returning a
// sorted list capped at topicCap.
func mergeTopics(existing, incoming []string) []string {
	set := make(map[string]bool, len(existing)+len(incoming))
	for _, t := range existing {
		set[t] = true
	}
	for _, t := range incoming {
		set[t] = true
	}

	merged := make([]string, 0, len(set))
	for t := range set {
		merged = append(merged, t)
	}
	sort.Strings(merged)
	if len(merged) > topicCap {
		merged = merged[:topicCap]
	}
	return merged
}
