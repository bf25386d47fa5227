package widget

import (
	"html"
	"strings"
)

// Format 把消息文本渲染为HTML段落：空行分段，单个换行转为 <br>，文本全部转义
func Format(text string) string {
	var b strings.Builder
	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(paragraph), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}
