package parser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
)

// parseWorkbook walks every sheet of an xlsx file. A sheet with a header row
// plus data rows becomes a table block; a lone row degrades to text. Formula
// cells are collected separately with their cached computed values, so the
// workbook is never recalculated here.
func (s *Service) parseWorkbook(path string) (*model.ParseResult, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", domain.ErrCorruptDocument, err)
	}
	defer wb.Close()

	res := &model.ParseResult{Metadata: map[string]string{}}

	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: read sheet %q: %v", domain.ErrCorruptDocument, sheet, err)
		}

		formulas, err := s.collectFormulas(wb, sheet, rows)
		if err != nil {
			return nil, err
		}
		res.Formulas = append(res.Formulas, formulas...)

		rows = trimEmptyRows(rows)
		switch {
		case len(rows) == 0:
			continue
		case len(rows) == 1:
			res.Blocks = append(res.Blocks, model.Block{
				Kind:    model.BlockText,
				Text:    strings.Join(rows[0], " | "),
				Sheet:   sheet,
				CellRef: "A1",
			})
		default:
			t := model.Table{
				Sheet:   sheet,
				CellRef: "A1",
				Headers: rows[0],
				Rows:    rows[1:],
			}
			res.Tables = append(res.Tables, t)
			res.Blocks = append(res.Blocks, model.Block{
				Kind:    model.BlockTable,
				Table:   &t,
				Sheet:   sheet,
				CellRef: "A1",
			})
		}

		for _, f := range formulas {
			text := f.Formula
			if f.ComputedValue != "" {
				text += " = " + f.ComputedValue
			}
			res.Blocks = append(res.Blocks, model.Block{
				Kind:    model.BlockFormula,
				Text:    text,
				Sheet:   sheet,
				CellRef: f.CellRef,
			})
		}
	}

	return res, nil
}

func (s *Service) collectFormulas(wb *excelize.File, sheet string, rows [][]string) ([]model.Formula, error) {
	var out []model.Formula
	for ri, row := range rows {
		for ci, val := range row {
			cell, err := excelize.CoordinatesToCellName(ci+1, ri+1)
			if err != nil {
				return nil, fmt.Errorf("cell name (%d,%d): %w", ci+1, ri+1, err)
			}
			formula, err := wb.GetCellFormula(sheet, cell)
			if err != nil {
				return nil, fmt.Errorf("%w: formula at %s!%s: %v", domain.ErrCorruptDocument, sheet, cell, err)
			}
			if formula == "" {
				continue
			}
			// excelize strips the leading '=' from stored formulas
			out = append(out, model.Formula{
				Formula:       "=" + formula,
				CellRef:       cell,
				Sheet:         sheet,
				ComputedValue: val,
			})
		}
	}
	return out, nil
}

func trimEmptyRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, row := range rows {
		empty := true
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				empty = false
				break
			}
		}
		if !empty {
			out = append(out, row)
		}
	}
	return out
}
