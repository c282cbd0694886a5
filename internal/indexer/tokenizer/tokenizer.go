// Package tokenizer turns page text into the lowercase word lists stored in
// the head and body indexes. Words are runs of ASCII letters; there is no
// stemming and no stop-word removal, so every word a user can type as a
// query term is indexed verbatim.
package tokenizer

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// Words lowercases text, splits it on anything that is not an ASCII letter
// and returns the distinct words in sorted order.
func Words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r < 'a' || r > 'z'
	})
	return dedup(fields)
}

// Terms normalises caller-supplied words the same way Words does, so a
// document built from an explicit list matches the same queries as one
// built from text.
func Terms(words []string) []string {
	var all []string
	for _, w := range words {
		all = append(all, Words(w)...)
	}
	return dedup(all)
}

func dedup(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// skipped elements never contribute words.
var skipped = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
}

// ExtractPage parses an HTML document. Head words come from the title and
// the keywords and description meta tags; body words come from visible text
// under <body>.
func ExtractPage(r io.Reader) (head, body []string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing html: %w", err)
	}

	var headText, bodyText strings.Builder
	var walk func(n *html.Node, inBody bool)
	walk = func(n *html.Node, inBody bool) {
		if n.Type == html.ElementNode {
			if _, ok := skipped[n.Data]; ok {
				return
			}
			switch n.Data {
			case "title":
				collectText(n, &headText)
				return
			case "meta":
				if c, ok := metaContent(n); ok {
					headText.WriteString(c)
					headText.WriteByte(' ')
				}
			case "body":
				inBody = true
			}
		}
		if n.Type == html.TextNode && inBody {
			bodyText.WriteString(n.Data)
			bodyText.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inBody)
		}
	}
	walk(doc, false)

	return Words(headText.String()), Words(bodyText.String()), nil
}

func collectText(n *html.Node, b *strings.Builder) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		collectText(c, b)
	}
}

func metaContent(n *html.Node) (string, bool) {
	var name, content string
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "name":
			name = strings.ToLower(a.Val)
		case "content":
			content = a.Val
		}
	}
	if name != "keywords" && name != "description" {
		return "", false
	}
	return content, content != ""
}
