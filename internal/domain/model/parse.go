package model

// BlockKind tags a raw extraction unit before chunking.
type BlockKind string

const (
	BlockText    BlockKind = "text"
	BlockTable   BlockKind = "table"
	BlockFormula BlockKind = "formula"
	BlockImage   BlockKind = "image" // OCR-derived text
)

// Block is one extraction unit in document order. The chunker sizes blocks
// into Chunks; it never reorders them.
type Block struct {
	Kind    BlockKind
	Text    string
	Table   *Table
	Page    *int
	Sheet   string
	CellRef string
}

// Table preserves tabular structure instead of flattened text.
// Headers is the first row; Rows excludes it.
type Table struct {
	Sheet   string
	Page    *int
	CellRef string
	Headers []string
	Rows    [][]string
}

// Formula records a spreadsheet formula cell as literal text plus its
// computed value when the workbook cached one.
type Formula struct {
	Formula       string `json:"formula"`
	CellRef       string `json:"cellReference"`
	Sheet         string `json:"sheetName"`
	ComputedValue string `json:"computedValue,omitempty"`
}

// ParseResult is the all-or-nothing output of a single parse call.
type ParseResult struct {
	Blocks   []Block
	Tables   []Table
	Formulas []Formula
	Metadata map[string]string
}
