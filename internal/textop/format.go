package textop

import "strings"

type Style string

const (
	Bold    Style = "bold"
	Italic  Style = "italic"
	Heading Style = "heading"
	List    Style = "list"
	Link    Style = "link"
	Code    Style = "code"
)

// Format turns a formatting shortcut over the selection [start, end) into
// insert operations. The operations are ordered so that applying them in
// sequence with ApplyAll keeps every position valid. An unknown style yields
// no operations.
func Format(buffer string, start, end int, style Style) []Operation {
	n := len([]rune(buffer))
	start, end = clampSelection(start, end, n)

	switch style {
	case Bold:
		return wrap(start, end, "**", "**")
	case Italic:
		return wrap(start, end, "_", "_")
	case Code:
		if strings.ContainsRune(string([]rune(buffer)[start:end]), '\n') {
			return wrap(start, end, "```\n", "\n```")
		}
		return wrap(start, end, "`", "`")
	case Link:
		return wrap(start, end, "[", "](url)")
	case Heading:
		return []Operation{InsertAt(lineStart(buffer, start), "# ")}
	case List:
		return []Operation{InsertAt(lineStart(buffer, start), "- ")}
	default:
		return nil
	}
}

// closing marker goes first so the opening insert does not shift it
func wrap(start, end int, open, closing string) []Operation {
	return []Operation{
		InsertAt(end, closing),
		InsertAt(start, open),
	}
}

func clampSelection(start, end, n int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start > n {
		start = n
	}
	if end < start {
		end = start
	}
	return start, end
}

func lineStart(buffer string, position int) int {
	runes := []rune(buffer)
	for i := position - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	return 0
}
