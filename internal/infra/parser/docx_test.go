package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
)

func buildDocx(t *testing.T, documentXML string) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Intro paragraph with </w:t></w:r><w:r><w:t>two runs.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>
    <w:tbl>
      <w:tr><w:tc><w:p><w:r><w:t>name</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>role</w:t></w:r></w:p></w:tc></w:tr>
      <w:tr><w:tc><w:p><w:r><w:t>ada</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>engineer</w:t></w:r></w:p></w:tc></w:tr>
    </w:tbl>
    <w:p><w:r><w:t>Closing remark.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestParseDOCX(t *testing.T) {
	svc := testService(t, nil)

	res, err := svc.Parse(context.Background(), buildDocx(t, docxBody), "docx")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(res.Blocks) != 3 {
		t.Fatalf("blocks = %d, want 3 (text, table, text): %+v", len(res.Blocks), res.Blocks)
	}
	if res.Blocks[0].Kind != model.BlockText {
		t.Errorf("block 0 kind = %q", res.Blocks[0].Kind)
	}
	wantText := "Intro paragraph with two runs.\n\nSecond paragraph."
	if res.Blocks[0].Text != wantText {
		t.Errorf("block 0 text = %q, want %q", res.Blocks[0].Text, wantText)
	}

	if res.Blocks[1].Kind != model.BlockTable || res.Blocks[1].Table == nil {
		t.Fatalf("block 1 = %+v, want table", res.Blocks[1])
	}
	tab := res.Blocks[1].Table
	if len(tab.Headers) != 2 || tab.Headers[0] != "name" || tab.Headers[1] != "role" {
		t.Errorf("headers = %v", tab.Headers)
	}
	if len(tab.Rows) != 1 || tab.Rows[0][0] != "ada" {
		t.Errorf("rows = %v", tab.Rows)
	}

	if res.Blocks[2].Text != "Closing remark." {
		t.Errorf("block 2 text = %q", res.Blocks[2].Text)
	}
	if len(res.Tables) != 1 {
		t.Errorf("tables = %d, want 1", len(res.Tables))
	}
}

func TestParseDOCXMissingDocumentXML(t *testing.T) {
	svc := testService(t, nil)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("word/styles.xml")
	w.Write([]byte("<w:styles/>"))
	zw.Close()

	_, err := svc.Parse(context.Background(), bytes.NewReader(buf.Bytes()), "docx")
	if !errors.Is(err, domain.ErrCorruptDocument) {
		t.Fatalf("err = %v, want ErrCorruptDocument", err)
	}
}

func TestParseDOCXNotAZip(t *testing.T) {
	svc := testService(t, nil)
	_, err := svc.Parse(context.Background(), bytesReader("plain text"), "docx")
	if !errors.Is(err, domain.ErrCorruptDocument) {
		t.Fatalf("err = %v, want ErrCorruptDocument", err)
	}
}
