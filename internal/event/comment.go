// ABOUTME: CommentEvent model produced by the realtime transport.
// ABOUTME: Also flattens Markdown comment bodies into short plain-text summaries.

package event

import (
	"bytes"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// SummaryLimit is the maximum summary length in runes.
const SummaryLimit = 140

// Comment is a new comment on a shared paused item. ID is the dedup key.
type Comment struct {
	ID          string    `json:"event_id"`
	ThreadID    string    `json:"thread_id"`
	AuthorID    string    `json:"author_id"`
	RecipientID string    `json:"recipient_id"`
	CreatedAt   time.Time `json:"created_at"`
	Body        string    `json:"body"`
}

var markdown = goldmark.New()

// Summarize renders a comment body as a single line of plain text, cut to
// SummaryLimit runes. Markdown markup is dropped; fenced code is skipped.
func Summarize(body string) string {
	src := []byte(body)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				buf.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.AutoLink:
			buf.Write(node.Label(src))
		}
		return ast.WalkContinue, nil
	})

	return truncate(strings.Join(strings.Fields(buf.String()), " "), SummaryLimit)
}

// truncate shortens s to max runes, ending with "..." when cut.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max-3])) + "..."
}
