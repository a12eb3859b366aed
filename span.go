package lsc

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

// FileID identifies one input source file within a compilation.
type FileID int

// Location is a single point in a source file.
type Location struct {
	File   FileID
	Line   int32
	Column int32
	Cursor int32
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Span is a half-open range [Start, End) in a single source file, used
// to anchor diagnostics and AST nodes back to their origin text.
type Span struct {
	Start Location
	End   Location
}

func (s Span) String() string {
	if s.Start.Line == s.End.Line && s.Start.Column == s.End.Column {
		return fmt.Sprintf("%d:%d", s.Start.Line, s.Start.Column)
	}
	if s.Start.Line == s.End.Line {
		return fmt.Sprintf("%d:%d..%d", s.Start.Line, s.Start.Column, s.End.Column)
	}
	return fmt.Sprintf("%d:%d..%d:%d", s.Start.Line, s.Start.Column, s.End.Line, s.End.Column)
}

// Join returns the smallest span covering both a and b.
func Join(a, b Span) Span {
	start, end := a.Start, b.End
	if b.Start.Cursor < a.Start.Cursor {
		start = b.Start
	}
	if a.End.Cursor > b.End.Cursor {
		end = a.End
	}
	return Span{Start: start, End: end}
}

// LineIndex allows fast conversion from byte cursor offsets within a
// single file to line/column locations. Construction is O(n) over the
// input; lookups are O(log lines) via binary search over line starts.
type LineIndex struct {
	file      FileID
	input     []byte
	lineStart []int32
}

func NewLineIndex(file FileID, input []byte) *LineIndex {
	lineStart := make([]int32, 1, 64)
	lineStart[0] = 0
	for i, b := range input {
		if b == '\n' {
			lineStart = append(lineStart, int32(i+1))
		}
	}
	return &LineIndex{file: file, input: input, lineStart: lineStart}
}

func (li *LineIndex) LocationAt(cursor int32) Location {
	if cursor < 0 {
		cursor = 0
	}
	if int(cursor) > len(li.input) {
		cursor = int32(len(li.input))
	}
	lineIdx := sort.Search(len(li.lineStart), func(i int) bool {
		return li.lineStart[i] > cursor
	}) - 1
	if lineIdx < 0 {
		lineIdx = 0
	}
	lineStart := li.lineStart[lineIdx]
	col := int32(utf8.RuneCount(li.input[lineStart:cursor])) + 1
	return Location{File: li.file, Line: int32(lineIdx + 1), Column: col, Cursor: cursor}
}

func (li *LineIndex) Span(startCursor, endCursor int32) Span {
	return Span{Start: li.LocationAt(startCursor), End: li.LocationAt(endCursor)}
}
