package ooxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Token stream with byte offsets
// ---------------------------------------------------------------------------

// token is a raw XML token together with the byte range it occupies in the
// part. Self-closing elements produce a StartElement covering the whole tag
// followed by an EndElement with an empty range.
type token struct {
	tok        xml.Token
	start, end int64
}

// tokenize decodes a part into raw tokens. Names keep their prefixes
// (w:t stays {Space: "w", Local: "t"}) because callers match on the prefix
// the way the markup spells it. Nesting is verified here since RawToken does
// not do it.
func tokenize(data []byte) ([]token, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrMalformedPart)
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	var (
		tokens []token
		stack  []xml.Name
	)
	for {
		start := dec.InputOffset()
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPart, err)
		}
		end := dec.InputOffset()

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name)
			tok = t.Copy()
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unexpected </%s> at offset %d", ErrMalformedPart, qualified(t.Name), start)
			}
			open := stack[len(stack)-1]
			if open != t.Name {
				return nil, fmt.Errorf("%w: <%s> closed by </%s> at offset %d", ErrMalformedPart, qualified(open), qualified(t.Name), start)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			tok = t.Copy()
		default:
			// comments, directives and processing instructions only matter
			// for their byte ranges, which the splices never touch
			tok = nil
		}
		if tok != nil {
			tokens = append(tokens, token{tok: tok, start: start, end: end})
		}
	}

	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: <%s> is never closed", ErrMalformedPart, qualified(stack[len(stack)-1]))
	}
	return tokens, nil
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// ---------------------------------------------------------------------------
// Text-bearing elements
// ---------------------------------------------------------------------------

// element is one text-bearing element (w:t, a:t, t) located in a part.
type element struct {
	// start/end cover the whole element, tags included.
	start, end int64
	// innerStart/innerEnd cover the content between the tags.
	innerStart, innerEnd int64
	// openTag is the opening tag exactly as written.
	openTag string
	// text is the decoded character data.
	text string
	// selfClosing is set for <x:t/>.
	selfClosing bool
}

// raw returns the content of the element as it is stored in the part.
func (e *element) raw(data []byte) string {
	return string(data[e.innerStart:e.innerEnd])
}

// collectElement consumes tokens from tokens[i] (which must be the matching
// StartElement) up to its EndElement and returns the element and the index
// of the EndElement.
func collectElement(data []byte, tokens []token, i int) (*element, int) {
	open := tokens[i]
	e := &element{
		start:      open.start,
		innerStart: open.end,
		openTag:    string(data[open.start:open.end]),
	}
	e.selfClosing = strings.HasSuffix(e.openTag, "/>")

	var text strings.Builder
	depth := 0
	for j := i + 1; j < len(tokens); j++ {
		switch t := tokens[j].tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				e.innerEnd = tokens[j].start
				e.end = tokens[j].end
				e.text = text.String()
				return e, j
			}
			depth--
		case xml.CharData:
			if depth == 0 {
				text.Write(t)
			}
		}
	}
	// unreachable for tokenize output, nesting is verified there
	e.innerEnd, e.end = int64(len(data)), int64(len(data))
	e.text = text.String()
	return e, len(tokens) - 1
}

// byteRange is the half-open range data[start:end].
type byteRange struct {
	start, end int64
}

// scanElements returns every element with the given name in document order.
// Elements named skip are passed over whole; their ranges are returned so
// callers can leave them untouched.
func scanElements(data []byte, name, skip xml.Name) ([]*element, []byteRange, error) {
	tokens, err := tokenize(data)
	if err != nil {
		return nil, nil, err
	}
	var out []*element
	var skipped []byteRange
	for i := 0; i < len(tokens); i++ {
		se, ok := tokens[i].tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch {
		case skip.Local != "" && se.Name == skip:
			e, j := collectElement(data, tokens, i)
			skipped = append(skipped, byteRange{e.start, e.end})
			i = j
		case se.Name == name:
			e, j := collectElement(data, tokens, i)
			out = append(out, e)
			i = j
		}
	}
	return out, skipped, nil
}

// ---------------------------------------------------------------------------
// Escaping and splicing
// ---------------------------------------------------------------------------

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escapeText escapes s for use as element content. Quotes are left alone:
// they are legal in content and office writers emit them unescaped.
func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// edit replaces data[start:end] with repl.
type edit struct {
	start, end int64
	repl       string
}

// applyEdits splices non-overlapping edits into a copy of data.
func applyEdits(data []byte, edits []edit) ([]byte, error) {
	if len(edits) == 0 {
		return bytes.Clone(data), nil
	}
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	var b bytes.Buffer
	b.Grow(len(data))
	var pos int64
	for _, e := range edits {
		if e.start < pos || e.end < e.start || e.end > int64(len(data)) {
			return nil, errors.New("overlapping edits")
		}
		b.Write(data[pos:e.start])
		b.WriteString(e.repl)
		pos = e.end
	}
	b.Write(data[pos:])
	return b.Bytes(), nil
}
