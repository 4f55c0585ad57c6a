package processing

import (
	"bytes"
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// numbering is the counter state of one renumber call. Top-level ordered
// lists share the document counter; lists nested in a list item count on
// their own from 1.
type numbering struct {
	document int
	nested   map[*ast.List]int
}

func newNumbering() *numbering {
	return &numbering{document: 1, nested: make(map[*ast.List]int)}
}

func (n *numbering) next(list *ast.List) int {
	if isNested(list) {
		v, ok := n.nested[list]
		if !ok {
			v = 1
		}
		n.nested[list] = v + 1
		return v
	}
	v := n.document
	n.document++
	return v
}

// itemMarker records where a list item's marker sits in the source.
type itemMarker struct {
	line    int
	content int // offset of the first content byte, -1 for an empty item
	end     int // last line holding the item's content
	depth   int
	seq     int
	number  int
	ordered bool
}

// markerToken is one list marker found in a line prefix. For ordered markers
// start:end spans the digits only.
type markerToken struct {
	start   int
	end     int
	ordered bool
}

type edit struct {
	start int
	end   int
	value string
}

// renumber rewrites the digits of every ordered list marker it can locate and
// returns the count of items that were numbered. Everything else in the
// source is copied through byte for byte.
func (t Transformer) renumber(s string) (string, int) {
	if s == "" {
		return s, 0
	}

	src := []byte(s)
	lines := newLineIndex(src)
	doc := t.markdown.Parser().Parse(text.NewReader(src))
	state := newNumbering()

	var markers []itemMarker
	count := 0
	// cursor is the last source line reached by the walk so far.
	cursor := -1
	// bare maps items without content to their marker line.
	bare := make(map[ast.Node]int)

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		if line, ok := leafLastLine(n, lines); ok && line > cursor {
			cursor = line
		}

		switch node := n.(type) {
		case *ast.Heading:
			if t.resetOnHeading && node.Parent() != nil && node.Parent().Kind() == ast.KindDocument {
				state.document = 1
			}
			return ast.WalkSkipChildren, nil

		case *ast.List:
			// A list that interrupts a paragraph must start at 1 or it
			// would no longer parse as a list.
			if node.IsOrdered() && !isNested(node) && interruptsParagraph(src, lines, node) {
				state.document = 1
			}

		case *ast.ListItem:
			list, ok := node.Parent().(*ast.List)
			if !ok {
				return ast.WalkContinue, nil
			}

			m := itemMarker{depth: listDepth(node), seq: len(markers), ordered: list.IsOrdered()}
			if m.ordered {
				m.number = state.next(list)
				count++
			}
			if start, ok := contentStart(node); ok {
				m.content = start
				m.line = lines.lineOf(start)
			} else if line, ok := bare[list.Parent()]; ok && list.FirstChild() == node {
				// "1. 2." puts both markers on one line.
				m.content = -1
				m.line = line
				bare[node] = line
			} else if line, ok := bareMarkerLine(src, lines, cursor+1); ok {
				m.content = -1
				m.line = line
				bare[node] = line
			} else {
				return ast.WalkContinue, nil
			}
			m.end = m.line
			if last := lastLine(node, lines); last > m.end {
				m.end = last
			}
			if m.line > cursor {
				cursor = m.line
			}
			markers = append(markers, m)
		}

		return ast.WalkContinue, nil
	})

	edits := markerEdits(src, lines, markers)
	if len(edits) == 0 {
		return s, count
	}
	return string(applyEdits(src, edits)), count
}

// markerEdits pairs the recorded items with the marker tokens on their line.
// Items that share a line ("1. - a") are matched outermost first. A line whose
// tokens do not line up with its items is left untouched. When a new number
// is wider or narrower than the old one, the item's continuation lines move
// by the same amount so they stay inside the item.
func markerEdits(src []byte, lines lineIndex, markers []itemMarker) []edit {
	byLine := make(map[int][]itemMarker)
	var order []int
	for _, m := range markers {
		if _, seen := byLine[m.line]; !seen {
			order = append(order, m.line)
		}
		byLine[m.line] = append(byLine[m.line], m)
	}

	var edits []edit
	for _, line := range order {
		group := byLine[line]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].depth != group[j].depth {
				return group[i].depth < group[j].depth
			}
			return group[i].seq < group[j].seq
		})

		markerLine := line
		start, stop := lines.bounds(line, len(src))
		if group[0].content >= 0 {
			stop = group[0].content
		}
		tokens := scanMarkers(src, start, stop)
		if len(tokens) == 0 && line > 0 {
			// Item whose content begins on the line after a bare marker.
			markerLine = line - 1
			start, stop = lines.bounds(markerLine, len(src))
			tokens = scanMarkers(src, start, stop)
		}
		_, lineEnd := lines.bounds(markerLine, len(src))
		if len(tokens) != len(group) {
			continue
		}

		matched := true
		for i := range group {
			if tokens[i].ordered != group[i].ordered {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}

		for i, tok := range tokens {
			if !tok.ordered {
				continue
			}
			value := strconv.Itoa(group[i].number)
			if string(src[tok.start:tok.end]) == value {
				continue
			}
			edits = append(edits, edit{start: tok.start, end: tok.end, value: value})

			if delta := len(value) - (tok.end - tok.start); delta != 0 {
				prefix := tok.start - start
				content := contentColumn(src, tokens, i, lineEnd) - start
				edits = append(edits, shiftEdits(src, lines, markerLine, group[i].end, prefix, content, delta)...)
			}
		}
	}

	return edits
}

// scanMarkers reads list markers from src[from:to], skipping indentation and
// blockquote markers. Scanning stops at the first byte that cannot start a
// marker.
func scanMarkers(src []byte, from, to int) []markerToken {
	var tokens []markerToken
	i := from
	for i < to {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '>':
			i++

		case isDigit(c):
			j := i
			for j < to && j-i < 9 && isDigit(src[j]) {
				j++
			}
			if j >= to || (src[j] != '.' && src[j] != ')') {
				return tokens
			}
			if j+1 < to && !isSpace(src[j+1]) {
				return tokens
			}
			tokens = append(tokens, markerToken{start: i, end: j, ordered: true})
			i = j + 1

		case c == '-' || c == '+' || c == '*':
			if i+1 < to && !isSpace(src[i+1]) {
				return tokens
			}
			tokens = append(tokens, markerToken{start: i, end: i + 1})
			i++

		default:
			return tokens
		}
	}
	return tokens
}

// contentColumn returns the offset where the content of the item opened by
// tokens[i] begins, following the CommonMark list item rules.
func contentColumn(src []byte, tokens []markerToken, i, lineEnd int) int {
	if i+1 < len(tokens) {
		return tokens[i+1].start
	}
	p := tokens[i].end
	if tokens[i].ordered {
		p++
	}
	spaces := 0
	for p+spaces < lineEnd && src[p+spaces] == ' ' {
		spaces++
	}
	if p+spaces >= lineEnd || spaces == 0 || spaces > 4 {
		return p + 1
	}
	return p + spaces
}

// shiftEdits moves the continuation lines of an item by delta columns. A
// line belongs to the item when it is indented at least to the item's
// content column. prefix and content are columns on the marker line; the
// spaces between them are where columns are added or removed. Lines past
// end are followed only while they keep that indentation, which picks up
// the closing fence of a code block.
func shiftEdits(src []byte, lines lineIndex, markerLine, end, prefix, content, delta int) []edit {
	var edits []edit
	for l := markerLine + 1; l < len(lines); l++ {
		start, stop := lines.bounds(l, len(src))
		line := src[start:stop]
		if isBlankLine(line) {
			continue
		}
		if !indentedTo(line, prefix, content) {
			if l > end {
				break
			}
			continue
		}

		at := start + prefix
		if delta > 0 {
			edits = append(edits, edit{start: at, end: at, value: strings.Repeat(" ", delta)})
		} else {
			edits = append(edits, edit{start: at, end: at - delta})
		}
	}
	return edits
}

func indentedTo(line []byte, prefix, content int) bool {
	if len(line) <= content {
		return false
	}
	for _, c := range line[prefix:content] {
		if c != ' ' {
			return false
		}
	}
	return true
}

// isBlankLine reports whether line holds nothing but whitespace and
// blockquote markers.
func isBlankLine(line []byte) bool {
	for _, c := range line {
		if !isSpace(c) && c != '>' {
			return false
		}
	}
	return true
}

// bareMarkerLine finds the line of a list item that has no content, the
// first line from line "from" that holds only list markers. Blank lines are
// skipped; any other line ends the search.
func bareMarkerLine(src []byte, lines lineIndex, from int) (int, bool) {
	if from < 0 {
		from = 0
	}
	for l := from; l < len(lines); l++ {
		start, stop := lines.bounds(l, len(src))
		if isBlankLine(src[start:stop]) {
			continue
		}
		tokens := scanMarkers(src, start, stop)
		if len(tokens) == 0 {
			return 0, false
		}
		last := tokens[len(tokens)-1]
		rest := last.end
		if last.ordered {
			rest++
		}
		if rest > stop || len(bytes.TrimSpace(src[rest:stop])) != 0 {
			return 0, false
		}
		return l, true
	}
	return 0, false
}

// leafLastLine returns the line of the last content segment of a block
// that carries its own lines, such as a paragraph or a code block.
func leafLastLine(n ast.Node, lines lineIndex) (int, bool) {
	if n.Type() != ast.TypeBlock {
		return 0, false
	}
	segs := n.Lines()
	if segs == nil || segs.Len() == 0 {
		return 0, false
	}
	seg := segs.At(segs.Len() - 1)
	last := seg.Start
	if seg.Stop > seg.Start {
		last = seg.Stop - 1
	}
	return lines.lineOf(last), true
}

// lastLine returns the last line holding content of any block under n, or
// -1 when there is none.
func lastLine(n ast.Node, lines lineIndex) int {
	last := -1
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if c.Type() != ast.TypeBlock {
			return ast.WalkSkipChildren, nil
		}
		if line, ok := leafLastLine(c, lines); ok && line > last {
			last = line
		}
		return ast.WalkContinue, nil
	})
	return last
}

// contentStart finds the source offset of the first content on the marker
// line of a list item. Only block nodes carry line segments.
func contentStart(n ast.Node) (int, bool) {
	c := n.FirstChild()
	if c == nil || c.Type() != ast.TypeBlock {
		return 0, false
	}

	if fenced, ok := c.(*ast.FencedCodeBlock); ok {
		if fenced.Info == nil {
			return 0, false
		}
		return fenced.Info.Segment.Start, true
	}

	if lines := c.Lines(); lines != nil && lines.Len() > 0 {
		return lines.At(0).Start, true
	}

	return contentStart(c)
}

func interruptsParagraph(src []byte, lines lineIndex, list *ast.List) bool {
	prev := list.PreviousSibling()
	if prev == nil || prev.Kind() != ast.KindParagraph {
		return false
	}
	first := list.FirstChild()
	if first == nil {
		return false
	}
	start, ok := contentStart(first)
	if !ok {
		return false
	}
	line := lines.lineOf(start)
	if line == 0 {
		return false
	}
	from, to := lines.bounds(line-1, len(src))
	return len(bytes.TrimSpace(src[from:to])) > 0
}

func isNested(list *ast.List) bool {
	for p := list.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == ast.KindListItem {
			return true
		}
	}
	return false
}

func listDepth(item *ast.ListItem) int {
	depth := 0
	for p := item.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == ast.KindListItem {
			depth++
		}
	}
	return depth
}

func applyEdits(src []byte, edits []edit) []byte {
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var buf bytes.Buffer
	buf.Grow(len(src))
	last := 0
	for _, e := range edits {
		buf.Write(src[last:e.start])
		buf.WriteString(e.value)
		last = e.end
	}
	buf.Write(src[last:])
	return buf.Bytes()
}

// lineIndex holds the byte offset at which each line starts.
type lineIndex []int

func newLineIndex(src []byte) lineIndex {
	idx := lineIndex{0}
	for i, b := range src {
		if b == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (l lineIndex) lineOf(offset int) int {
	return sort.Search(len(l), func(i int) bool { return l[i] > offset }) - 1
}

// bounds returns the line's start and end offsets, excluding the newline.
func (l lineIndex) bounds(line, size int) (int, int) {
	start := l[line]
	end := size
	if line+1 < len(l) {
		end = l[line+1] - 1
	}
	return start, end
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' }
