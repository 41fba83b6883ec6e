package feed

import (
	"bytes"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"kartpitsbot/pkg/model"
)

type column int

const (
	colUnknown column = iota
	colPosition
	colNumber
	colKart
	colName
	colLastLap
	colBestLap
)

// header words, matched against lower-cased header cell text
var headerColumns = []struct {
	words []string
	col   column
}{
	{[]string{"pos", "position", "rk", "rank", "p"}, colPosition},
	{[]string{"kart", "kart no", "kart nr", "transponder"}, colKart},
	{[]string{"no", "nr", "#", "num", "number", "start", "car"}, colNumber},
	{[]string{"team", "name", "driver", "pilot", "entrant"}, colName},
	{[]string{"last", "last lap", "lap", "lap time", "last time", "time"}, colLastLap},
	{[]string{"best", "best lap", "best time", "fastest"}, colBestLap},
}

// text-bearing elements probed when no table yields a match
var textElements = map[atom.Atom]bool{
	atom.Body: true, atom.Div: true, atom.Span: true, atom.P: true,
	atom.Li: true, atom.Pre: true, atom.Td: true, atom.Tr: true,
	atom.Section: true, atom.Article: true,
}

// ExtractHTML scans the tables of a markup payload and falls back to generic
// text elements when no table row carries both a lap time and a number.
func ExtractHTML(payload []byte) []model.Observation {
	doc, err := html.Parse(bytes.NewReader(payload))
	if err != nil {
		return []model.Observation{}
	}

	for _, table := range findAll(doc, atom.Table) {
		if obs := extractTable(table); len(obs) > 0 {
			return obs
		}
	}

	d := newDedupe()
	scanText(doc, d)
	return d.out
}

func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return found
}

// tableRows returns the rows of table, not descending into nested tables.
func tableRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Table:
				continue
			case atom.Tr:
				rows = append(rows, c)
			default:
				walk(c)
			}
		}
	}
	walk(table)
	return rows
}

type cell struct {
	text   string
	header bool
}

func rowCells(tr *html.Node) []cell {
	cells := []cell{}
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
			continue
		}
		cells = append(cells, cell{text: nodeText(c), header: c.DataAtom == atom.Th})
	}
	return cells
}

func extractTable(table *html.Node) []model.Observation {
	d := newDedupe()
	var columns []column
	for _, tr := range tableRows(table) {
		cells := rowCells(tr)
		if len(cells) == 0 {
			continue
		}
		if cols, ok := headerRow(cells); ok {
			columns = cols
			continue
		}
		if o, ok := rowObservation(cells, columns); ok {
			d.add(o)
		}
	}
	return d.out
}

// headerRow maps header cells to columns. A row counts as a header when it is
// made of th cells, or when it holds no digits and at least one known word.
func headerRow(cells []cell) ([]column, bool) {
	allTh := true
	known := 0
	cols := make([]column, len(cells))
	for i, c := range cells {
		if !c.header {
			allTh = false
		}
		if strings.IndexFunc(c.text, unicode.IsDigit) >= 0 {
			return nil, false
		}
		cols[i] = headerColumn(c.text)
		if cols[i] != colUnknown {
			known++
		}
	}
	if allTh || known > 0 {
		return cols, true
	}
	return nil, false
}

func headerColumn(text string) column {
	t := strings.ToLower(strings.Trim(strings.TrimSpace(text), ".:"))
	for _, hc := range headerColumns {
		for _, w := range hc.words {
			if t == w {
				return hc.col
			}
		}
	}
	return colUnknown
}

func columnAt(columns []column, i int) column {
	if i < len(columns) {
		return columns[i]
	}
	return colUnknown
}

func rowObservation(cells []cell, columns []column) (model.Observation, bool) {
	timeIdx, bestIdx, numIdx, kartIdx, posIdx, nameIdx := -1, -1, -1, -1, -1, -1

	// header-guided pass
	for i, c := range cells {
		switch columnAt(columns, i) {
		case colLastLap:
			if _, ok := ParseLapTime(c.text); ok && timeIdx < 0 {
				timeIdx = i
			}
		case colBestLap:
			if _, ok := ParseLapTime(c.text); ok && bestIdx < 0 {
				bestIdx = i
			}
		case colNumber:
			if isInteger(c.text) && numIdx < 0 {
				numIdx = i
			}
		case colKart:
			if isInteger(c.text) && kartIdx < 0 {
				kartIdx = i
			}
		case colPosition:
			if isInteger(c.text) && posIdx < 0 {
				posIdx = i
			}
		case colName:
			if nameIdx < 0 && strings.TrimSpace(c.text) != "" {
				nameIdx = i
			}
		}
	}

	// pattern pass for whatever the header did not provide
	for i, c := range cells {
		if i == timeIdx || i == bestIdx || i == numIdx || i == kartIdx || i == posIdx {
			continue
		}
		if _, ok := ParseLapTime(c.text); ok {
			if timeIdx < 0 {
				timeIdx = i
			} else if bestIdx < 0 && columnAt(columns, i) == colUnknown {
				bestIdx = i
			}
			continue
		}
		if isInteger(c.text) && numIdx < 0 && kartIdx < 0 && columnAt(columns, i) == colUnknown {
			numIdx = i
			continue
		}
		if nameIdx < 0 && columnAt(columns, i) == colUnknown && strings.IndexFunc(c.text, unicode.IsLetter) >= 0 {
			nameIdx = i
		}
	}

	if numIdx < 0 {
		numIdx = kartIdx
	}
	if timeIdx < 0 || numIdx < 0 {
		return model.Observation{}, false
	}

	lap, _ := ParseLapTime(cells[timeIdx].text)
	o := model.Observation{
		TeamNumber:     strings.TrimSpace(cells[numIdx].text),
		LapTimeSeconds: lap,
	}
	// the race number keys the team; a separate kart column is the physical
	// kart, which only pit entries may assign
	o.KartNumber = o.TeamNumber
	if nameIdx >= 0 {
		o.TeamName = strings.TrimSpace(cells[nameIdx].text)
	}
	if bestIdx >= 0 {
		if best, ok := ParseLapTime(cells[bestIdx].text); ok {
			o.BestLapSeconds = &best
		}
	}
	if posIdx >= 0 {
		if pos, err := strconv.Atoi(strings.TrimSpace(cells[posIdx].text)); err == nil {
			o.Position = &pos
		}
	}
	return o, true
}

// scanText emits observations from the innermost text elements whose text
// holds a number and a lap time. It reports whether n or a descendant matched.
func scanText(n *html.Node, d *dedupe) bool {
	matched := false
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if scanText(c, d) {
			matched = true
		}
	}
	if matched || n.Type != html.ElementNode || !textElements[n.DataAtom] {
		return matched
	}
	for _, line := range strings.Split(nodeText(n), "\n") {
		if o, ok := lineObservation(line); ok {
			d.add(o)
			matched = true
		}
	}
	return matched
}

// lineObservation reads the first bare integer as the number and the last
// lap time token as the lap. Other tokens with letters form the name.
func lineObservation(line string) (model.Observation, bool) {
	fields := strings.Fields(line)
	num, lap := "", 0.0
	lapAt := -1
	var name []string
	for i, f := range fields {
		if t, ok := ParseLapTime(f); ok {
			lap, lapAt = t, i
		}
	}
	for i, f := range fields {
		if i == lapAt {
			continue
		}
		if num == "" && isInteger(f) {
			num = f
			continue
		}
		if strings.IndexFunc(f, unicode.IsLetter) >= 0 {
			name = append(name, f)
		}
	}
	if num == "" || lapAt < 0 {
		return model.Observation{}, false
	}
	return model.Observation{
		TeamNumber:     num,
		KartNumber:     num,
		TeamName:       strings.Join(name, " "),
		LapTimeSeconds: lap,
	}, true
}

// nodeText returns the text below n with runs of spaces collapsed. Block
// boundaries (br, block elements) become line breaks.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style:
				return
			case atom.Br:
				b.WriteString("\n")
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Div, atom.P, atom.Li, atom.Tr, atom.Pre:
				b.WriteString("\n")
			case atom.Td, atom.Th, atom.Span:
				b.WriteString(" ")
			}
		}
	}
	walk(n)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
