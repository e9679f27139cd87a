package excel

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"

	"swsmreport/internal/model"
)

// maxSpan caps colspan/rowspan so a malformed export cannot blow up the grid.
const maxSpan = 1000

var errNoTable = errors.New("no <table> element found")

type htmlCell struct {
	text    string
	header  bool
	colspan int
	rowspan int
}

type htmlTable struct {
	head [][]htmlCell
	body [][]htmlCell
	foot [][]htmlCell
}

// DecodeHTML reads the largest <table> of an HTML document, the format most
// portals use for their ".xls" exports. contentType may carry a charset;
// otherwise the encoding is sniffed from the document.
func DecodeHTML(r io.Reader, contentType string, opts DecodeOptions) (*model.RawTable, error) {
	utf8Reader, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, fmt.Errorf("detect charset: %w", err)
	}
	doc, err := html.Parse(utf8Reader)
	if err != nil {
		return nil, err
	}

	tables := collectTables(doc)
	if len(tables) == 0 {
		return nil, errNoTable
	}

	var best *model.RawTable
	for _, t := range tables {
		candidate := t.toRawTable(opts)
		if len(candidate.Headers) == 0 {
			continue
		}
		if best == nil || len(candidate.Rows) > len(best.Rows) {
			best = candidate
		}
	}
	if best == nil {
		return nil, errNoTable
	}
	return best, nil
}

func collectTables(doc *html.Node) []*htmlTable {
	var tables []*htmlTable
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Table {
			t := &htmlTable{}
			t.collectRows(n, atom.Tbody)
			tables = append(tables, t)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return tables
}

// collectRows gathers the rows that belong to this table, leaving nested tables to their own pass.
func (t *htmlTable) collectRows(n *html.Node, section atom.Atom) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Table:
			continue
		case atom.Thead, atom.Tbody, atom.Tfoot:
			t.collectRows(c, c.DataAtom)
		case atom.Tr:
			row := parseRow(c)
			switch section {
			case atom.Thead:
				t.head = append(t.head, row)
			case atom.Tfoot:
				t.foot = append(t.foot, row)
			default:
				t.body = append(t.body, row)
			}
		default:
			t.collectRows(c, section)
		}
	}
}

func parseRow(tr *html.Node) []htmlCell {
	var cells []htmlCell
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
			continue
		}
		cells = append(cells, htmlCell{
			text:    textContent(c),
			header:  c.DataAtom == atom.Th,
			colspan: spanAttr(c, "colspan"),
			rowspan: spanAttr(c, "rowspan"),
		})
	}
	return cells
}

func spanAttr(n *html.Node, key string) int {
	for _, a := range n.Attr {
		if !strings.EqualFold(a.Key, key) {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(a.Val))
		if err != nil || v < 1 {
			return 1
		}
		if v > maxSpan {
			return maxSpan
		}
		return v
	}
	return 1
}

// textContent joins the cell's text with whitespace collapsed to single spaces.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		switch {
		case node.Type == html.TextNode:
			sb.WriteString(node.Data)
		case node.Type == html.ElementNode && node.DataAtom == atom.Br:
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func (t *htmlTable) toRawTable(opts DecodeOptions) *model.RawTable {
	headRows := t.head
	bodyRows := append(append([][]htmlCell{}, t.body...), t.foot...)

	if len(headRows) == 0 {
		// without <thead>, leading all-<th> rows form the header
		for len(bodyRows) > 0 && allHeaderCells(bodyRows[0]) {
			headRows = append(headRows, bodyRows[0])
			bodyRows = bodyRows[1:]
		}
	}
	if len(headRows) == 0 {
		n := opts.headerRows()
		if n > len(bodyRows) {
			n = len(bodyRows)
		}
		headRows, bodyRows = bodyRows[:n], bodyRows[n:]
	}

	head := expandSpans(headRows)
	body := expandSpans(bodyRows)

	width := 0
	for _, row := range head {
		width = max(width, len(row))
	}
	for _, row := range body {
		width = max(width, len(row))
	}

	table := &model.RawTable{
		Format:  model.SourceFormatHTML,
		Headers: buildHeaders(head, width),
		Rows:    [][]any{},
	}
	for _, row := range body {
		values := make([]any, len(row))
		blank := true
		for i, text := range row {
			if text == "" {
				continue
			}
			values[i] = text
			blank = false
		}
		if !blank {
			table.Rows = append(table.Rows, values)
		}
	}
	return table
}

func allHeaderCells(row []htmlCell) bool {
	if len(row) == 0 {
		return false
	}
	for _, c := range row {
		if !c.header {
			return false
		}
	}
	return true
}

type carry struct {
	text string
	left int
}

// expandSpans turns rows with colspan/rowspan into a rectangular text grid.
func expandSpans(rows [][]htmlCell) [][]string {
	out := make([][]string, 0, len(rows))
	pending := map[int]carry{}

	for _, row := range rows {
		next := map[int]carry{}
		var line []string
		col := 0

		fill := func() {
			for {
				p, ok := pending[col]
				if !ok {
					return
				}
				line = append(line, p.text)
				if p.left > 1 {
					next[col] = carry{text: p.text, left: p.left - 1}
				}
				col++
			}
		}

		for _, cell := range row {
			fill()
			for k := 0; k < cell.colspan; k++ {
				line = append(line, cell.text)
				if cell.rowspan > 1 {
					next[col] = carry{text: cell.text, left: cell.rowspan - 1}
				}
				col++
			}
		}

		// spans from above that sit past the last cell of this row
		last := -1
		for c := range pending {
			last = max(last, c)
		}
		for col <= last {
			if _, ok := pending[col]; ok {
				fill()
				continue
			}
			line = append(line, "")
			col++
		}

		out = append(out, line)
		pending = next
	}
	return out
}
