package parser

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
)

// parseDOCX reads word/document.xml from the OOXML container and walks the
// body: w:p paragraphs become text blocks, w:tbl elements become tables.
func (s *Service) parseDOCX(path string) (*model.ParseResult, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open docx: %v", domain.ErrCorruptDocument, err)
	}
	defer zr.Close()

	var docXML io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return nil, fmt.Errorf("%w: open document.xml: %v", domain.ErrCorruptDocument, err)
			}
			break
		}
	}
	if docXML == nil {
		return nil, fmt.Errorf("%w: word/document.xml missing", domain.ErrCorruptDocument)
	}
	defer docXML.Close()

	blocks, tables, err := walkDocumentXML(docXML)
	if err != nil {
		return nil, fmt.Errorf("%w: document.xml: %v", domain.ErrCorruptDocument, err)
	}
	return &model.ParseResult{Blocks: blocks, Tables: tables}, nil
}

// walkDocumentXML streams the body with xml.Decoder, keeping paragraph and
// table order. Paragraphs inside tables belong to their cell, not the text
// flow.
func walkDocumentXML(r io.Reader) ([]model.Block, []model.Table, error) {
	dec := xml.NewDecoder(r)

	var blocks []model.Block
	var tables []model.Table
	var paras []string

	flushParas := func() {
		if len(paras) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(paras, "\n\n"))
		paras = nil
		if text != "" {
			blocks = append(blocks, model.Block{Kind: model.BlockText, Text: text})
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "p":
			text, err := readParagraph(dec, se)
			if err != nil {
				return nil, nil, err
			}
			if strings.TrimSpace(text) != "" {
				paras = append(paras, text)
			}
		case "tbl":
			rows, err := readTable(dec, se)
			if err != nil {
				return nil, nil, err
			}
			if len(rows) == 0 {
				continue
			}
			flushParas()
			t := model.Table{Headers: rows[0]}
			if len(rows) > 1 {
				t.Rows = rows[1:]
			}
			tables = append(tables, t)
			blocks = append(blocks, model.Block{Kind: model.BlockTable, Table: &t})
		}
	}
	flushParas()
	return blocks, tables, nil
}

// readParagraph collects all w:t text within one w:p element.
func readParagraph(dec *xml.Decoder, start xml.StartElement) (string, error) {
	var sb strings.Builder
	depth := 1
	inText := false
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "t":
				inText = true
			case "br", "cr":
				sb.WriteByte('\n')
			case "tab":
				sb.WriteByte('\t')
			}
		case xml.EndElement:
			depth--
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

// readTable walks one w:tbl element into a row/cell grid.
func readTable(dec *xml.Decoder, start xml.StartElement) ([][]string, error) {
	var rows [][]string
	var row []string
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "tr":
				row = nil
			case "tc":
				cell, err := readCell(dec)
				if err != nil {
					return nil, err
				}
				row = append(row, cell)
				depth-- // readCell consumed the matching end element
			}
		case xml.EndElement:
			depth--
			if t.Name.Local == "tr" && row != nil {
				rows = append(rows, row)
				row = nil
			}
		}
	}
	return rows, nil
}

// readCell collects the text of one w:tc, joining its paragraphs with spaces.
func readCell(dec *xml.Decoder) (string, error) {
	var parts []string
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "p" {
				text, err := readParagraph(dec, t)
				if err != nil {
					return "", err
				}
				if strings.TrimSpace(text) != "" {
					parts = append(parts, strings.TrimSpace(text))
				}
				continue
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return strings.Join(parts, " "), nil
}
