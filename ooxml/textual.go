package ooxml

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// textSpec describes the text-bearing element of a textual format.
type textSpec struct {
	name     xml.Name
	bare     string // <w:t>
	preserve string // <w:t xml:space="preserve">
	close    string // </w:t>
	// skip holds text elements that are not translated.
	skip xml.Name
}

// documentText is the run text element of word/document.xml.
var documentText = textSpec{
	name:     xml.Name{Space: "w", Local: "t"},
	bare:     `<w:t>`,
	preserve: `<w:t xml:space="preserve">`,
	close:    `</w:t>`,
}

// sharedStringText is the text element of xl/sharedStrings.xml, both for
// plain <si><t> items and for rich-text runs <si><r><t>. Phonetic runs
// <rPh><t> are reading hints for the source text and stay as they are.
var sharedStringText = textSpec{
	name:     xml.Name{Local: "t"},
	bare:     `<t>`,
	preserve: `<t xml:space="preserve">`,
	close:    `</t>`,
	skip:     xml.Name{Local: "rPh"},
}

// ---------------------------------------------------------------------------
// Locator
// ---------------------------------------------------------------------------

// textLocator yields one span per non-empty text element. No object model is
// built; spans carry the literal text and the markup around it.
type textLocator struct {
	spec textSpec
}

func (l textLocator) Locate(part string, data []byte) ([]Span, error) {
	elems, _, err := scanElements(data, l.spec.name, l.spec.skip)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", part, err)
	}
	var spans []Span
	for _, e := range elems {
		if e.text == "" {
			continue
		}
		spans = append(spans, Span{
			Part:    part,
			Text:    e.text,
			Raw:     e.raw(data),
			OpenTag: e.openTag,
			Offset:  e.start,
		})
	}
	return spans, nil
}

// ---------------------------------------------------------------------------
// Rewriter
// ---------------------------------------------------------------------------

// textRewriter substitutes translations by literal, tag-bounded replacement
// on the serialized part. Every replacement target is a complete element
// (opening tag, stored text, closing tag), so a string that is a prefix of
// another can never match inside it. All pairs are applied in a single
// left-to-right pass with longer targets tried first, so a translation that
// happens to equal another source string is never replaced again.
type textRewriter struct {
	spec textSpec
}

func (r textRewriter) Rewrite(data []byte, translations map[string]string) ([]byte, error) {
	elems, skipped, err := scanElements(data, r.spec.name, r.spec.skip)
	if err != nil {
		return nil, err
	}

	// Opening tag forms seen in this part, besides the two canonical ones.
	openTags := []string{r.spec.bare, r.spec.preserve}
	seenTag := map[string]bool{r.spec.bare: true, r.spec.preserve: true}
	for _, e := range elems {
		if !e.selfClosing && !seenTag[e.openTag] {
			seenTag[e.openTag] = true
			openTags = append(openTags, e.openTag)
		}
	}

	pairs := map[string]string{}
	for _, e := range elems {
		if e.text == "" {
			continue
		}
		translated, ok := translations[e.text]
		if !ok {
			return nil, fmt.Errorf("%w: %q at offset %d", ErrMissingTranslation, truncate(e.text, 60), e.start)
		}
		raw := e.raw(data)
		for _, open := range openTags {
			old := open + raw + r.spec.close
			if _, done := pairs[old]; done {
				continue
			}
			pairs[old] = r.openFor(open, translated) + escapeText(translated) + r.spec.close
		}
	}
	if len(pairs) == 0 {
		return append([]byte(nil), data...), nil
	}

	return replaceOutside(newReplacer(pairs), data, skipped), nil
}

// replaceOutside runs rep over data except for the skipped ranges, which are
// copied as they are.
func replaceOutside(rep *strings.Replacer, data []byte, skipped []byteRange) []byte {
	var b strings.Builder
	b.Grow(len(data))
	var pos int64
	for _, r := range skipped {
		rep.WriteString(&b, string(data[pos:r.start]))
		b.Write(data[r.start:r.end])
		pos = r.end
	}
	rep.WriteString(&b, string(data[pos:]))
	return []byte(b.String())
}

// openFor keeps the original opening tag unless the translation would lose
// significant whitespace under a bare tag.
func (r textRewriter) openFor(open, translated string) string {
	if open == r.spec.bare && hasEdgeSpace(translated) {
		return r.spec.preserve
	}
	return open
}

// newReplacer orders replacement targets longest first (ties broken
// lexically for deterministic output). strings.Replacer tries candidates in
// argument order at each position, so the most specific target wins.
func newReplacer(pairs map[string]string) *strings.Replacer {
	olds := make([]string, 0, len(pairs))
	for old := range pairs {
		olds = append(olds, old)
	}
	sort.Slice(olds, func(i, j int) bool {
		if len(olds[i]) != len(olds[j]) {
			return len(olds[i]) > len(olds[j])
		}
		return olds[i] < olds[j]
	})
	args := make([]string, 0, 2*len(olds))
	for _, old := range olds {
		args = append(args, old, pairs[old])
	}
	return strings.NewReplacer(args...)
}

func hasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	first := []rune(s)[0]
	last := []rune(s)[len([]rune(s))-1]
	return unicode.IsSpace(first) || unicode.IsSpace(last)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
