// Package textop applies insert/delete operations to text buffers.
//
// Positions and lengths count runes, not bytes. Apply never fails: out of
// range operations are clamped and unknown operation types leave the buffer
// untouched, so a malformed remote operation cannot break an editing session.
package textop

type OpType string

const (
	Insert OpType = "insert"
	Delete OpType = "delete"
)

// Operation is the unit of replication between peers.
type Operation struct {
	Type     OpType `json:"type"`
	Position int    `json:"position"`
	Text     string `json:"text,omitempty"`
	Length   int    `json:"length,omitempty"`
}

func InsertAt(position int, text string) Operation {
	return Operation{Type: Insert, Position: position, Text: text}
}

func DeleteAt(position, length int) Operation {
	return Operation{Type: Delete, Position: position, Length: length}
}

// Apply returns buffer with op applied.
func Apply(buffer string, op Operation) string {
	switch op.Type {
	case Insert:
		return applyInsert(buffer, op)
	case Delete:
		return applyDelete(buffer, op)
	default:
		return buffer
	}
}

// ApplyAll applies ops in order.
func ApplyAll(buffer string, ops []Operation) string {
	for _, op := range ops {
		buffer = Apply(buffer, op)
	}
	return buffer
}

func applyInsert(buffer string, op Operation) string {
	if op.Text == "" {
		return buffer
	}
	runes := []rune(buffer)
	// past the end or negative: append
	if op.Position < 0 || op.Position >= len(runes) {
		return buffer + op.Text
	}
	out := make([]rune, 0, len(runes)+len(op.Text))
	out = append(out, runes[:op.Position]...)
	out = append(out, []rune(op.Text)...)
	out = append(out, runes[op.Position:]...)
	return string(out)
}

func applyDelete(buffer string, op Operation) string {
	if op.Length <= 0 {
		return buffer
	}
	runes := []rune(buffer)
	start, end := op.Position, op.Position+op.Length
	// overflow on huge lengths
	if end < start {
		end = len(runes)
	}
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start >= end {
		return buffer
	}
	return string(runes[:start]) + string(runes[end:])
}
