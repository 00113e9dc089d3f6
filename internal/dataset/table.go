package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gunhoflash/Project-ComputerGraphics/pkg/util"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table encodings.
const (
	EncodingUTF8  = "utf-8"
	EncodingEUCKR = "euc-kr"
)

// DecodeTable turns a population or area table into rows. The format follows
// the file extension of ref: .xlsx via excelize, .xls/.html as an HTML table
// export, anything else as delimited text.
func DecodeTable(ref string, data []byte, encoding string) ([][]string, error) {
	switch tableExt(ref) {
	case ".xlsx":
		return decodeXLSX(data)
	case ".xls", ".html", ".htm":
		r, err := decodedReader(bytes.NewReader(data), encoding)
		if err != nil {
			return nil, err
		}
		return decodeHTMLTable(r)
	default:
		r, err := decodedReader(bytes.NewReader(data), encoding)
		if err != nil {
			return nil, err
		}
		return decodeDelimited(r)
	}
}

func tableExt(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	return strings.ToLower(path.Ext(ref))
}

func decodedReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", EncodingUTF8, "utf8":
		return r, nil
	case EncodingEUCKR, "euckr", "cp949":
		return transform.NewReader(r, korean.EUCKR.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported table encoding %q", encoding)
	}
}

// decodeDelimited reads CSV/TSV text. The delimiter is sniffed from the first
// line, a UTF-8 BOM is skipped and blank lines are dropped.
func decodeDelimited(r io.Reader) ([][]string, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	head, _ := br.Peek(4096)
	skip := 0
	if bytes.HasPrefix(head, utf8BOM) {
		skip = len(utf8BOM)
	}
	delim := sniffDelimiter(head[skip:])
	if skip > 0 {
		if _, err := br.Discard(skip); err != nil {
			return nil, fmt.Errorf("skip bom: %w", err)
		}
	}

	reader := csv.NewReader(br)
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	rowNum := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			return nil, fmt.Errorf("read table row %d: %w", rowNum, err)
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		if util.IsBlankRow(record) {
			continue
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func sniffDelimiter(buf []byte) rune {
	line := buf
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		line = buf[:i]
	}
	tabs := bytes.Count(line, []byte{'\t'})
	commas := bytes.Count(line, []byte{','})
	semis := bytes.Count(line, []byte{';'})
	switch {
	case tabs > 0:
		return '\t'
	case semis > commas:
		return ';'
	default:
		return ','
	}
}

func decodeXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		row = util.CleanRow(row)
		if util.IsBlankRow(row) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// decodeHTMLTable reads the first <table> of an HTML document, which is what
// the Seoul open-data portal serves for its ".xls" downloads.
func decodeHTMLTable(r io.Reader) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html table: %w", err)
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, errors.New("html document has no table")
	}

	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var row []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, util.CleanCell(cell.Text()))
		})
		if !util.IsBlankRow(row) {
			rows = append(rows, row)
		}
	})
	return rows, nil
}
