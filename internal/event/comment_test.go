// ABOUTME: Tests for comment summaries.
// ABOUTME: Markdown flattening, whitespace collapsing, and rune-safe truncation.

package event

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "plain", body: "do you really need it?", want: "do you really need it?"},
		{name: "emphasis", body: "**Nice** find, _really_", want: "Nice find, really"},
		{name: "heading and paragraph", body: "# Headphones\n\nSkip these.", want: "Headphones Skip these."},
		{name: "link keeps label", body: "see [the review](https://example.com)", want: "see the review"},
		{name: "soft line break", body: "one\ntwo", want: "one two"},
		{name: "fenced code dropped", body: "before\n\n```\nprice = 300\n```\n\nafter", want: "before after"},
		{name: "empty", body: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.body))
		})
	}
}

func TestSummarize_Truncates(t *testing.T) {
	body := strings.Repeat("é", SummaryLimit+20)

	got := Summarize(body)

	assert.Equal(t, SummaryLimit, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}
