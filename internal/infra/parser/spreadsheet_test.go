package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
)

func bytesReader(s string) *strings.Reader { return strings.NewReader(s) }

func testService(t *testing.T, r Runner) *Service {
	t.Helper()
	log := zerolog.Nop()
	cfg := config.ParserConfig{
		Pdftotext: "pdftotext", Pdftoppm: "pdftoppm", Tesseract: "tesseract",
		OCRDPI: 72, MaxPages: 50, MinTokens: 8, MaxTokens: 64,
	}
	return NewServiceWithRunner(cfg, r, wordCounter{}, &log)
}

func buildWorkbook(t *testing.T) *excelize.File {
	t.Helper()
	wb := excelize.NewFile()

	// Sheet1: header + data rows + a formula cell with a cached value
	cells := map[string]interface{}{
		"A1": "region", "B1": "revenue",
		"A2": "north", "B2": 100,
		"A3": "south", "B3": 200,
		"A4": "total", "B4": 300,
	}
	for cell, v := range cells {
		if err := wb.SetCellValue("Sheet1", cell, v); err != nil {
			t.Fatalf("set cell %s: %v", cell, err)
		}
	}
	// stored formulas carry no leading '=', as in files written by Excel
	if err := wb.SetCellFormula("Sheet1", "B4", "SUM(B2:B3)"); err != nil {
		t.Fatalf("set formula: %v", err)
	}

	// Budget: a lone labelled formula cell far from A1
	if _, err := wb.NewSheet("Budget"); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	if err := wb.SetCellValue("Budget", "A15", "total"); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	if err := wb.SetCellValue("Budget", "B15", 60); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	if err := wb.SetCellFormula("Budget", "B15", "SUM(A1:A10)"); err != nil {
		t.Fatalf("set formula: %v", err)
	}

	// Notes: a single-row sheet
	if _, err := wb.NewSheet("Notes"); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	if err := wb.SetCellValue("Notes", "A1", "quarterly summary for internal use"); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	return wb
}

func TestParseWorkbookEverySheetYieldsChunks(t *testing.T) {
	svc := testService(t, nil)
	buf, err := buildWorkbook(t).WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	res, err := svc.Parse(context.Background(), buf, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	chunks := svc.Chunk(testDoc(), res)
	perSheet := map[string]int{}
	for _, ch := range chunks {
		perSheet[ch.Sheet]++
	}
	for _, sheet := range []string{"Sheet1", "Budget", "Notes"} {
		if perSheet[sheet] == 0 {
			t.Errorf("sheet %q produced no chunks", sheet)
		}
	}
}

func TestParseWorkbookExtractsTableStructure(t *testing.T) {
	svc := testService(t, nil)
	buf, err := buildWorkbook(t).WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	res, err := svc.Parse(context.Background(), buf, "xlsx")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(res.Tables) != 1 {
		t.Fatalf("tables = %d, want 1", len(res.Tables))
	}
	tab := res.Tables[0]
	if tab.Sheet != "Sheet1" {
		t.Errorf("table sheet = %q, want Sheet1", tab.Sheet)
	}
	if len(tab.Headers) != 2 || tab.Headers[0] != "region" {
		t.Errorf("headers = %v", tab.Headers)
	}
	if len(tab.Rows) != 3 {
		t.Errorf("rows = %d, want 3", len(tab.Rows))
	}
}

func TestParseWorkbookExtractsFormulas(t *testing.T) {
	svc := testService(t, nil)
	buf, err := buildWorkbook(t).WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	res, err := svc.Parse(context.Background(), buf, "xlsx")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(res.Formulas) != 2 {
		t.Fatalf("formulas = %d, want 2: %v", len(res.Formulas), res.Formulas)
	}
	bySheet := map[string]model.Formula{}
	for _, f := range res.Formulas {
		bySheet[f.Sheet] = f
	}

	f := bySheet["Sheet1"]
	if f.Formula != "=SUM(B2:B3)" || f.CellRef != "B4" {
		t.Errorf("Sheet1 formula = %q at %s, want =SUM(B2:B3) at B4", f.Formula, f.CellRef)
	}
	if f.ComputedValue != "300" {
		t.Errorf("computed value = %q, want 300", f.ComputedValue)
	}

	f = bySheet["Budget"]
	if f.Formula != "=SUM(A1:A10)" || f.CellRef != "B15" {
		t.Errorf("Budget formula = %q at %s, want =SUM(A1:A10) at B15", f.Formula, f.CellRef)
	}

	var formulaBlocks []model.Block
	for _, b := range res.Blocks {
		if b.Kind == model.BlockFormula {
			formulaBlocks = append(formulaBlocks, b)
		}
	}
	if len(formulaBlocks) != 2 || formulaBlocks[0].Text != "=SUM(B2:B3) = 300" {
		t.Errorf("formula blocks = %+v", formulaBlocks)
	}
}

func TestParseWorkbookCorruptFile(t *testing.T) {
	svc := testService(t, nil)
	_, err := svc.Parse(context.Background(), bytesReader("not a zip archive"), "xlsx")
	if !errors.Is(err, domain.ErrCorruptDocument) {
		t.Fatalf("err = %v, want ErrCorruptDocument", err)
	}
}

func TestParseUnsupportedFormat(t *testing.T) {
	svc := testService(t, nil)
	_, err := svc.Parse(context.Background(), bytesReader("hello"), "text/markdown")
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}
