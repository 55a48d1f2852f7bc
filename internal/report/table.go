// Package report parses the structured biomarker table out of generated
// analysis text and exports it for download.
package report

import (
	"regexp"
	"strings"

	"mediscan-backend/internal/logger"
)

var (
	tableTitleRegex = regexp.MustCompile(`(?im)^\s*(?:#+\s*)?Table Format with Color-Coded Risk Levels\s*$`)

	// Fallbacks when the model skipped the title: recognizable header
	// rows in pipe, space and tab delimited form.
	headerFallbackRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^\s*\|?\s*Test\s*\|?\s*Value\s*\|?\s*Reference Range`),
		regexp.MustCompile(`(?im)^\s*Test\s+(?:Value|Result)\s+Reference Range`),
		regexp.MustCompile(`(?im)^\s*Test\s*\t(?:Value|Result)\s*\tReference Range`),
	}

	tableEndRegex   = regexp.MustCompile(`(?i)\n\s*\n|\n\s*(?:#+\s*|\*{2,})[A-Za-z]|\n\s*Disclaimer:`)
	separatorRegex  = regexp.MustCompile(`^[-=:\s]{5,}$`)
	multiSpaceRegex = regexp.MustCompile(`\s{2,}`)
)

var headerKeywords = []string{"test", "value", "range", "units", "level", "note"}

const minCellsPerRow = 4

// ExtractTable parses the color-coded risk table out of analysis text.
// The first returned row is the header. An absent table is not an
// error: the result is simply empty.
func ExtractTable(analysisText string) [][]string {
	searchArea, found := locateTable(analysisText)
	if !found {
		logger.Debug("No table marker found in analysis text")
		return nil
	}

	end := len(searchArea)
	if loc := tableEndRegex.FindStringIndex(searchArea); loc != nil {
		end = loc[0]
	}
	tableContent := strings.TrimSpace(searchArea[:end])
	if tableContent == "" {
		logger.Warn("Table marker found but no content followed it")
		return nil
	}

	var rows [][]string
	for _, line := range strings.Split(tableContent, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if separatorRegex.MatchString(strings.ReplaceAll(line, "|", "")) {
			continue
		}

		cells := splitRow(line)
		if len(cells) >= minCellsPerRow {
			rows = append(rows, cells)
		}
	}

	if len(rows) == 0 {
		logger.Warn("Table content found but no row had enough cells")
		return nil
	}

	// Never discard parsed data over a weak header, just flag it.
	if headerConfidence(rows[0]) < 2 {
		logger.Warn("First table row does not resemble the expected header", "row", rows[0])
	}

	logger.Info("Table extracted from analysis", "rows", len(rows))
	return rows
}

// locateTable returns the text following the table marker. The exact
// title wins; otherwise the content starts at a recognizable header row
// so the header itself is parsed as the first row.
func locateTable(text string) (string, bool) {
	if loc := tableTitleRegex.FindStringIndex(text); loc != nil {
		return strings.TrimSpace(text[loc[1]:]), true
	}
	for _, re := range headerFallbackRegexes {
		if loc := re.FindStringIndex(text); loc != nil {
			return strings.TrimSpace(text[loc[0]:]), true
		}
	}
	return "", false
}

// splitRow splits a table line by pipe, then tab, then runs of two or
// more spaces, dropping empty cells.
func splitRow(line string) []string {
	var parts []string
	switch {
	case strings.Contains(line, "|"):
		parts = strings.Split(strings.Trim(line, "|"), "|")
	case strings.Contains(line, "\t"):
		parts = strings.Split(line, "\t")
	default:
		parts = multiSpaceRegex.Split(line, -1)
	}

	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cells = append(cells, p)
		}
	}
	return cells
}

func headerConfidence(header []string) int {
	joined := strings.ToLower(strings.Join(header, " "))
	count := 0
	for _, kw := range headerKeywords {
		if strings.Contains(joined, kw) {
			count++
		}
	}
	return count
}
