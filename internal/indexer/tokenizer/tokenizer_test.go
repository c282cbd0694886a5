package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", []string{}},
		{"lowercases", "Apple PIE", []string{"apple", "pie"}},
		{"dedups and sorts", "pie apple pie", []string{"apple", "pie"}},
		{"splits on punctuation", "apple,pie;banana-bread", []string{"apple", "banana", "bread", "pie"}},
		{"drops digits", "route66 x11", []string{"route", "x"}},
		{"keeps operator words", "this and that or not", []string{"and", "not", "or", "that", "this"}},
		{"non ascii letters split", "café crème", []string{"caf", "cr", "me"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Words(tt.text))
		})
	}
}

func TestTerms(t *testing.T) {
	got := Terms([]string{"Apple", "apple", "Banana Split", "", "42"})
	assert.Equal(t, []string{"apple", "banana", "split"}, got)
	assert.Empty(t, Terms(nil))
}

const page = `<!DOCTYPE html>
<html>
<head>
  <title>Apple Pie Recipes</title>
  <meta name="keywords" content="baking, dessert">
  <meta name="Description" content="Classic autumn pie">
  <meta name="viewport" content="width device">
  <style>body { color: red }</style>
</head>
<body>
  <h1>Grandma's Apple Pie</h1>
  <p>Preheat the oven.</p>
  <script>var hidden = "tracking";</script>
  <noscript>enable javascript</noscript>
</body>
</html>`

func TestExtractPage(t *testing.T) {
	head, body, err := ExtractPage(strings.NewReader(page))
	require.NoError(t, err)

	assert.Equal(t, []string{"apple", "autumn", "baking", "classic", "dessert", "pie", "recipes"}, head)
	assert.Equal(t, []string{"apple", "grandma", "oven", "pie", "preheat", "s", "the"}, body)

	assert.NotContains(t, head, "width")
	assert.NotContains(t, body, "tracking")
	assert.NotContains(t, body, "javascript")
	assert.NotContains(t, body, "color")
}

func TestExtractPageFragment(t *testing.T) {
	head, body, err := ExtractPage(strings.NewReader("just some text"))
	require.NoError(t, err)
	assert.Empty(t, head)
	assert.Equal(t, []string{"just", "some", "text"}, body)
}

var samplePages = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `Boolean queries combine terms with and, or and not. Each visited page
        contributes its title and keywords to the head index and its visible text
        to the body index, so the same query can be answered against both.`,
	"long": strings.Repeat(`Browsing history search keeps every visited page in an
        inverted index keyed by lowercase word. Queries are parsed, validated and
        evaluated as set operations over the matching document identifiers. `, 20),
}

func BenchmarkWords(b *testing.B) {
	for name, text := range samplePages {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Words(text)
			}
		})
	}
}

func BenchmarkExtractPage(b *testing.B) {
	page := "<html><head><title>Apple pie</title><meta name=\"keywords\" content=\"apple, baking\"></head><body><p>" +
		samplePages["long"] + "</p><script>var x = 1;</script></body></html>"
	b.ReportAllocs()
	b.SetBytes(int64(len(page)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, _, err := ExtractPage(strings.NewReader(page)); err != nil {
				b.Fatal(err)
			}
		}
	})
}
