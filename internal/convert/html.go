package convert

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// htmlToText strips markup and returns readable text, one block element per
// line. Script and style contents are dropped.
func htmlToText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "head":
				return
			case "br":
				b.WriteString("\n")
			}
		case html.TextNode:
			txt := strings.TrimSpace(n.Data)
			if txt != "" {
				b.WriteString(txt)
				b.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.Data) {
			b.WriteString("\n")
		}
	}
	walk(doc)

	// collapse the whitespace the element walk leaves behind
	lines := strings.Split(b.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		ln = strings.Join(strings.Fields(ln), " ")
		if ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n"), nil
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "tr", "li", "h1", "h2", "h3", "h4", "h5", "h6", "table", "section", "article":
		return true
	}
	return false
}
