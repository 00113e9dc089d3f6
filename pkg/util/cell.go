package util

import (
	"regexp"
	"strings"
)

var (
	// htmlTagPattern matches HTML tags like <span>, </td>, <br/>.
	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
	// multiSpacePattern matches runs of whitespace, including newlines from wrapped cells.
	multiSpacePattern = regexp.MustCompile(`\s+`)
)

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

// CleanCell normalizes a table cell taken from a spreadsheet or an HTML export:
// it drops a leading BOM, strips tags, decodes common entities and collapses whitespace.
func CleanCell(s string) string {
	if s == "" {
		return ""
	}
	s = strings.TrimPrefix(s, "\ufeff")
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = multiSpacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CleanRow applies CleanCell to every cell in place and returns the row.
func CleanRow(row []string) []string {
	for i := range row {
		row[i] = CleanCell(row[i])
	}
	return row
}

// IsBlankRow reports whether every cell of the row is empty after trimming.
func IsBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
