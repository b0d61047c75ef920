package parser

import (
	"strconv"
	"strings"
	"unicode"

	"document-ai-pipeline/internal/domain/model"
)

// Chunker sizes parsed blocks into chunks of minTokens..maxTokens while
// respecting semantic boundaries: never mid-sentence, never mid-table-row.
// Ordinals increase strictly in document order, starting at 0.
type Chunker struct {
	minTokens int
	maxTokens int
	counter   TokenCounter
}

func NewChunker(minTokens, maxTokens int, counter TokenCounter) *Chunker {
	if minTokens <= 0 {
		minTokens = 512
	}
	if maxTokens <= minTokens {
		maxTokens = minTokens * 2
	}
	return &Chunker{minTokens: minTokens, maxTokens: maxTokens, counter: counter}
}

func (c *Chunker) Chunk(doc *model.Document, res *model.ParseResult) []*model.Chunk {
	var chunks []*model.Chunk
	ordinal := 0

	emit := func(content string, typ model.ChunkType, b model.Block, meta map[string]string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		ch := model.NewChunk(doc.ID, doc.ProjectID, ordinal, content, typ)
		ch.Page = b.Page
		ch.Sheet = b.Sheet
		ch.CellRef = b.CellRef
		ch.Metadata = meta
		ch.TokenCount = c.counter.Count(content)
		chunks = append(chunks, ch)
		ordinal++
	}

	for _, b := range res.Blocks {
		switch b.Kind {
		case model.BlockText:
			for _, part := range c.splitText(b.Text) {
				emit(part, model.ChunkTypeText, b, nil)
			}
		case model.BlockImage:
			for _, part := range c.splitText(b.Text) {
				emit(part, model.ChunkTypeImage, b, map[string]string{"source": "ocr"})
			}
		case model.BlockFormula:
			emit(b.Text, model.ChunkTypeFormula, b, nil)
		case model.BlockTable:
			if b.Table == nil {
				continue
			}
			meta := map[string]string{"rows": strconv.Itoa(len(b.Table.Rows)), "cols": strconv.Itoa(len(b.Table.Headers))}
			for _, part := range c.splitTable(b.Table) {
				emit(part, model.ChunkTypeTable, b, meta)
			}
		}
	}
	return chunks
}

// splitText packs paragraphs greedily up to maxTokens. Small paragraphs are
// merged toward the minTokens target; a paragraph over the limit falls back
// to sentence packing.
func (c *Chunker) splitText(text string) []string {
	var parts []string
	var cur []string
	curTokens := 0

	flush := func() {
		if len(cur) > 0 {
			parts = append(parts, strings.Join(cur, "\n\n"))
			cur = nil
			curTokens = 0
		}
	}

	for _, para := range splitParagraphs(text) {
		pt := c.counter.Count(para)
		if pt > c.maxTokens {
			flush()
			parts = append(parts, c.splitOversizedParagraph(para)...)
			continue
		}
		if curTokens+pt > c.maxTokens {
			flush()
		}
		cur = append(cur, para)
		curTokens += pt
	}
	flush()
	return parts
}

// splitOversizedParagraph packs whole sentences up to the limit. A single
// sentence beyond the limit is split at word boundaries as a last resort.
func (c *Chunker) splitOversizedParagraph(para string) []string {
	var parts []string
	var cur []string
	curTokens := 0

	flush := func() {
		if len(cur) > 0 {
			parts = append(parts, strings.Join(cur, " "))
			cur = nil
			curTokens = 0
		}
	}

	for _, sent := range splitSentences(para) {
		st := c.counter.Count(sent)
		if st > c.maxTokens {
			flush()
			parts = append(parts, c.splitWords(sent)...)
			continue
		}
		if curTokens+st > c.maxTokens {
			flush()
		}
		cur = append(cur, sent)
		curTokens += st
	}
	flush()
	return parts
}

func (c *Chunker) splitWords(sent string) []string {
	words := strings.Fields(sent)
	var parts []string
	var cur []string
	curTokens := 0
	for _, w := range words {
		wt := c.counter.Count(w) + 1
		if curTokens+wt > c.maxTokens && len(cur) > 0 {
			parts = append(parts, strings.Join(cur, " "))
			cur = nil
			curTokens = 0
		}
		cur = append(cur, w)
		curTokens += wt
	}
	if len(cur) > 0 {
		parts = append(parts, strings.Join(cur, " "))
	}
	return parts
}

// splitTable keeps a table whole when it fits. Oversized tables split at row
// boundaries with the header row repeated in every part, so each chunk stays
// self-describing.
func (c *Chunker) splitTable(t *model.Table) []string {
	header := strings.Join(t.Headers, " | ")
	headerTokens := c.counter.Count(header)

	rows := make([]string, 0, len(t.Rows))
	total := headerTokens
	for _, r := range t.Rows {
		line := strings.Join(r, " | ")
		rows = append(rows, line)
		total += c.counter.Count(line) + 1
	}

	if total <= c.maxTokens {
		return []string{strings.Join(append([]string{header}, rows...), "\n")}
	}

	var parts []string
	cur := []string{header}
	curTokens := headerTokens
	for _, line := range rows {
		lt := c.counter.Count(line) + 1
		// a part always takes at least one row, even an oversized one:
		// rows never split
		if curTokens+lt > c.maxTokens && len(cur) > 1 {
			parts = append(parts, strings.Join(cur, "\n"))
			cur = []string{header}
			curTokens = headerTokens
		}
		cur = append(cur, line)
		curTokens += lt
	}
	if len(cur) > 1 {
		parts = append(parts, strings.Join(cur, "\n"))
	}
	return parts
}

func splitParagraphs(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

// splitSentences breaks on terminal punctuation followed by whitespace.
// Deliberately simple; abbreviation handling is not worth its weight here.
func splitSentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				sent := strings.TrimSpace(string(runes[start : i+1]))
				if sent != "" {
					out = append(out, sent)
				}
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}
