package render

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var (
	extensions = parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	htmlFlags  = html.CommonFlags | html.HrefTargetBlank
	policy     = bluemonday.UGCPolicy()
)

// MarkdownToHTML renders model output for the page. Anything the model emits is
// untrusted, so the result is always sanitized.
func MarkdownToHTML(md string) string {
	if md == "" {
		return ""
	}

	p := parser.NewWithExtensions(extensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})
	unsafeHTML := markdown.Render(p.Parse([]byte(md)), renderer)

	return string(policy.SanitizeBytes(unsafeHTML))
}
