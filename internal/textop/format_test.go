package textop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		name       string
		buffer     string
		start, end int
		style      Style
		want       string
	}{
		{name: "bold", buffer: "Hello World", start: 0, end: 5, style: Bold, want: "**Hello** World"},
		{name: "italic", buffer: "Hello World", start: 0, end: 5, style: Italic, want: "_Hello_ World"},
		{name: "inline code", buffer: "a b", start: 2, end: 3, style: Code, want: "a `b`"},
		{name: "code block", buffer: "x\ny", start: 0, end: 3, style: Code, want: "```\nx\ny\n```"},
		{name: "link", buffer: "see docs", start: 4, end: 8, style: Link, want: "see [docs](url)"},
		{name: "heading on second line", buffer: "one\ntwo", start: 5, end: 5, style: Heading, want: "one\n# two"},
		{name: "list", buffer: "item", start: 2, end: 2, style: List, want: "- item"},
		{name: "selection clamped", buffer: "abc", start: 1, end: 99, style: Bold, want: "a**bc**"},
		{name: "reversed selection collapses", buffer: "abc", start: 2, end: 1, style: Italic, want: "ab__c"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ops := Format(tc.buffer, tc.start, tc.end, tc.style)
			assert.Equal(t, tc.want, ApplyAll(tc.buffer, ops))
		})
	}
}

func TestFormat_UnknownStyle(t *testing.T) {
	assert.Nil(t, Format("text", 0, 4, "strike"))
}
