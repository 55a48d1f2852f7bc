// Package anonymizer scrubs labeled PII from report text while leaving
// biomarker sections untouched, so redaction never destroys the clinical
// values the rest of the pipeline depends on.
package anonymizer

import (
	"regexp"
	"sort"
	"strings"
)

// Section headers that mark the start of a protected biomarker region.
// A region runs from the header match to the next blank line, or the end
// of the text.
var biomarkerHeaders = []string{
	"Biomarkers", "Test Results", "Laboratory Results", "Blood Test",
	"Reference Range", "Units", "Value", "Result",
}

var headerPatterns = compileHeaderPatterns()

func compileHeaderPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(biomarkerHeaders))
	for _, h := range biomarkerHeaders {
		patterns = append(patterns, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(h)+`\s*[:\-]?`))
	}
	return patterns
}

// piiPattern pairs a label-matching expression with its replacement. The
// replacement keeps the label and separator and redacts only the value.
type piiPattern struct {
	re          *regexp.Regexp
	replacement string
}

var piiPatterns = []piiPattern{
	{regexp.MustCompile(`(?i)(\b(Name|Full Name|Patient Name|Client Name|Person Name)\s*:\s*)([^\n]+)`), "${1}XXXX"},
	{regexp.MustCompile(`(?i)(\b(ID|Patient ID|Reference No|ID Number|Case Number)\s*:\s*)\S+`), "${1}XXXX"},
	// The value class excludes \n so redaction stops at line end, and it
	// requires a digit so a redacted line never matches again.
	{regexp.MustCompile(`(?i)(\b(Phone|Mobile|Contact|Phone No|Tel|Telephone)[ \t]*:[ \t]*)[+().\t -]*\d[+\d().\t -]*`), "${1}XXXX"},
	{regexp.MustCompile(`(?i)(\b(Email|Email ID|E-mail)\s*:\s*)\S+@\S+`), "${1}XXXX"},
	{regexp.MustCompile(`(?i)(\b(Address|Location|Residence|Home Address|Office Address)\s*:\s*)([^\n]+)`), "${1}XXXX"},
	{regexp.MustCompile(`(?i)(\b(DOB|Date of Birth|Birthdate|Birth Date)\s*:\s*)([^\n]+)`), "${1}XXXX"},
	{regexp.MustCompile(`(?i)(\b(Date|Report Date|Sample Date)\s*:\s*)([^\n]+)`), "${1}XXXX"},
	{regexp.MustCompile(`(?i)(\b(Time|Report Time|Collection Time|Testing Time)\s*:\s*)([^\n]+)`), "${1}XXXX"},
	{regexp.MustCompile(`(?i)(\b(Referral|Doctor Name|Physician|Referred By)\s*:\s*Dr\.\s*)([^\n]+)`), "${1}XXXX"},
}

// region is a half-open [Start, End) byte range of protected text.
type region struct {
	Start, End int
}

// Anonymize redacts labeled PII values outside protected biomarker
// regions and returns text of unchanged layout: protected regions are
// copied verbatim and segments are rejoined without extra separators.
func Anonymize(text string) string {
	if text == "" {
		return ""
	}

	regions := detectProtectedRegions(text)

	var sb strings.Builder
	sb.Grow(len(text))
	last := 0
	for _, r := range regions {
		sb.WriteString(scrubPII(text[last:r.Start]))
		sb.WriteString(text[r.Start:r.End])
		last = r.End
	}
	sb.WriteString(scrubPII(text[last:]))
	return sb.String()
}

// detectProtectedRegions finds every biomarker header occurrence, extends
// each to the next blank line, and merges overlapping or touching regions
// until none remain. The result is sorted and disjoint.
func detectProtectedRegions(text string) []region {
	var regions []region
	for _, p := range headerPatterns {
		for _, loc := range p.FindAllStringIndex(text, -1) {
			start := loc[0]
			end := len(text)
			if idx := strings.Index(text[start:], "\n\n"); idx >= 0 {
				end = start + idx + 2
			}
			regions = append(regions, region{Start: start, End: end})
		}
	}
	return mergeRegions(regions)
}

func mergeRegions(regions []region) []region {
	if len(regions) < 2 {
		return regions
	}
	sort.Slice(regions, func(i, j int) bool {
		if regions[i].Start != regions[j].Start {
			return regions[i].Start < regions[j].Start
		}
		return regions[i].End < regions[j].End
	})

	merged := regions[:1]
	for _, r := range regions[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// scrubPII replaces every labeled PII value with XXXX, keeping the label
// and its separator intact.
func scrubPII(text string) string {
	for _, p := range piiPatterns {
		text = p.re.ReplaceAllString(text, p.replacement)
	}
	return text
}
