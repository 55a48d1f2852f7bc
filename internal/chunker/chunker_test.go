package chunker

import (
	"strings"
	"testing"
)

func TestChunkEmptyInput(t *testing.T) {
	c := New(1000, 0, 100)
	if got := c.Chunk(""); got != nil {
		t.Errorf("empty input should produce no chunks, got %d", len(got))
	}
	if got := c.Chunk("  \n\n\t \n "); got != nil {
		t.Errorf("whitespace-only input should produce no chunks, got %d", len(got))
	}
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	c := New(1000, 0, 100)
	chunks := c.Chunk("Hemoglobin is within the normal range.\n\nGlucose is slightly elevated.")
	if len(chunks) != 1 {
		t.Fatalf("short text should fit one chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0], "Hemoglobin") || !strings.Contains(chunks[0], "Glucose") {
		t.Error("chunk should carry both paragraphs")
	}
}

func TestChunkReconstructsNormalizedText(t *testing.T) {
	c := New(1000, 0, 100)

	// ~12000 chars, already in normalized shape: single \n\n paragraph
	// breaks, no CR, no surrounding whitespace.
	para := strings.Repeat("The patient presents stable vital signs. Laboratory values trend toward baseline. ", 5)
	text := strings.TrimSpace(strings.Repeat(para+"\n\n", 30))

	chunks := c.Chunk(text)
	if len(chunks) < 5 {
		t.Fatalf("12k chars should split into many chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			t.Errorf("chunk %d is empty", i)
		}
		if len(chunk) > 1000 {
			t.Errorf("chunk %d exceeds budget: %d chars", i, len(chunk))
		}
	}
	if got := strings.Join(chunks, ""); got != text {
		t.Errorf("concatenated chunks must equal the normalized input: %d chars vs %d", len(got), len(text))
	}
}

func TestChunkPrefersParagraphBoundaries(t *testing.T) {
	c := New(200, 0, 20)
	para := strings.Repeat("Stable values observed here. ", 4)
	text := strings.TrimSpace(strings.Repeat(strings.TrimSpace(para)+"\n\n", 6))

	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(chunk, "\n\n") {
			t.Errorf("chunk %d should end at a paragraph break, ends %q", i, chunk[len(chunk)-10:])
		}
	}
	if got := strings.Join(chunks, ""); got != text {
		t.Error("paragraph cuts must still reconstruct the input")
	}
}

func TestChunkOversizedRunHardCut(t *testing.T) {
	c := New(100, 0, 10)
	// One unbroken 450-char run, no sentence or paragraph boundaries.
	text := strings.Repeat("x", 450)

	chunks := c.Chunk(text)
	if len(chunks) < 4 {
		t.Fatalf("unbreakable run should be hard-cut, got %d chunks", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 100 {
			t.Errorf("chunk %d exceeds budget: %d chars", i, len(chunk))
		}
	}
	if strings.Join(chunks, "") != text {
		t.Error("hard cuts must lose no content")
	}
}

func TestChunkShortFinalRemainderKept(t *testing.T) {
	c := New(100, 0, 30)
	// 100 chars of x, then a tiny tail below minChunkSize.
	text := strings.Repeat("x", 100) + "\n\ntail"

	chunks := c.Chunk(text)
	if len(chunks) != 2 {
		t.Fatalf("expected the tail to become its own chunk, got %d chunks", len(chunks))
	}
	if chunks[1] != "\n\ntail" {
		t.Errorf("trailing chunk = %q", chunks[1])
	}
	if strings.Join(chunks, "") != text {
		t.Error("keeping the remainder must preserve content")
	}
}

func TestChunkNormalizesBlankRuns(t *testing.T) {
	c := New(1000, 0, 100)
	chunks := c.Chunk("first paragraph\n\n\n\n\nsecond paragraph")
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	if strings.Contains(chunks[0], "\n\n\n") {
		t.Error("runs of blank lines should collapse to one paragraph break")
	}
}

func TestChunkContentPreserved(t *testing.T) {
	c := New(200, 0, 20)
	sentinel := "UNIQUEMARKER_ALPHA"
	text := strings.Repeat("Filler sentence goes here. ", 20) + "\n\n" + sentinel + " closes the report."

	chunks := c.Chunk(text)
	found := false
	for _, chunk := range chunks {
		if strings.Contains(chunk, sentinel) {
			found = true
		}
	}
	if !found {
		t.Error("content from the tail of the input must appear in some chunk")
	}
}

func TestOverlapOptInDuplicatesTail(t *testing.T) {
	c := New(120, 40, 20)
	text := "One two three four five six seven eight nine ten. Alpha beta gamma delta epsilon zeta eta theta.\n\nSecond paragraph continues the report with more content to force a second chunk."

	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	tail := chunks[0][len(chunks[0])-10:]
	if !strings.Contains(chunks[1], strings.TrimSpace(tail)) {
		t.Errorf("second chunk should carry overlap from the first; first ends %q, second is %q", tail, chunks[1])
	}
	for i, chunk := range chunks {
		if len(chunk) > 120+40 {
			t.Errorf("chunk %d exceeds budget plus overlap: %d chars", i, len(chunk))
		}
	}
}

func TestZeroOverlapIsContiguous(t *testing.T) {
	contiguous := New(120, 0, 20)
	overlapping := New(120, 40, 20)
	text := strings.TrimSpace(strings.Repeat("Sentence padding for the chunker goes here. ", 12))

	base := contiguous.Chunk(text)
	if strings.Join(base, "") != text {
		t.Error("zero-overlap chunks must concatenate back to the input")
	}
	withOverlap := overlapping.Chunk(text)
	if strings.Join(withOverlap, "") == text {
		t.Error("overlap should duplicate text across chunk boundaries")
	}
}
