package ooxml

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// DrawingML names used by slide parts.
var (
	nameParagraph = xml.Name{Space: "a", Local: "p"}
	nameRun       = xml.Name{Space: "a", Local: "r"}
	nameText      = xml.Name{Space: "a", Local: "t"}
)

// ---------------------------------------------------------------------------
// Paragraph model
// ---------------------------------------------------------------------------

// paragraph is an <a:p> with the runs it directly contains. Offsets are
// handles into the part's bytes so edits never disturb surrounding markup.
type paragraph struct {
	start, end int64
	runs       []*run
}

// run is an <a:r>. Its formatting (<a:rPr>) is left where it is; only the
// <a:t> content is ever touched.
type run struct {
	start, end int64
	// closeStart is the offset of </a:r>, where a missing <a:t> is inserted.
	closeStart  int64
	selfClosing bool
	text        *element
}

// Text returns the concatenated text of all runs.
func (p *paragraph) Text() string {
	var b strings.Builder
	for _, r := range p.runs {
		if r.text != nil {
			b.WriteString(r.text.text)
		}
	}
	return b.String()
}

// parseSlide builds the paragraph model of a slide part. Text outside runs
// (fields, line breaks) is not part of the model.
func parseSlide(data []byte) ([]*paragraph, error) {
	tokens, err := tokenize(data)
	if err != nil {
		return nil, err
	}

	var (
		paras []*paragraph
		stack []*paragraph
		cur   *run
	)
	for i := 0; i < len(tokens); i++ {
		tk := tokens[i]
		switch t := tk.tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name == nameParagraph:
				p := &paragraph{start: tk.start}
				stack = append(stack, p)
				paras = append(paras, p)
			case t.Name == nameRun && len(stack) > 0 && cur == nil:
				cur = &run{start: tk.start}
				cur.selfClosing = strings.HasSuffix(string(data[tk.start:tk.end]), "/>")
			case t.Name == nameText && cur != nil && cur.text == nil:
				e, j := collectElement(data, tokens, i)
				cur.text = e
				i = j
			}
		case xml.EndElement:
			switch {
			case t.Name == nameRun && cur != nil:
				cur.closeStart = tk.start
				cur.end = tk.end
				p := stack[len(stack)-1]
				p.runs = append(p.runs, cur)
				cur = nil
			case t.Name == nameParagraph && len(stack) > 0:
				p := stack[len(stack)-1]
				p.end = tk.end
				stack = stack[:len(stack)-1]
			}
		}
	}
	return paras, nil
}

// ---------------------------------------------------------------------------
// Locator
// ---------------------------------------------------------------------------

// slideLocator yields one span per paragraph. Paragraphs whose text was
// already produced earlier in the same document (on this or a previous
// slide) are skipped, as are empty ones.
type slideLocator struct {
	seen map[string]bool
}

func newSlideLocator() *slideLocator {
	return &slideLocator{seen: make(map[string]bool)}
}

func (l *slideLocator) Locate(part string, data []byte) ([]Span, error) {
	paras, err := parseSlide(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", part, err)
	}
	var spans []Span
	for _, p := range paras {
		text := p.Text()
		if text == "" || l.seen[text] {
			continue
		}
		l.seen[text] = true
		spans = append(spans, Span{Part: part, Text: text, Offset: p.start})
	}
	return spans, nil
}

// ---------------------------------------------------------------------------
// Rewriter
// ---------------------------------------------------------------------------

// slideRewriter replaces the text of every translated paragraph: the first
// run receives the whole translation and keeps its formatting, all other
// runs of the paragraph are removed. Formatting carried only by the removed
// runs is lost. Paragraphs without runs are left alone.
type slideRewriter struct{}

func (slideRewriter) Rewrite(data []byte, translations map[string]string) ([]byte, error) {
	paras, err := parseSlide(data)
	if err != nil {
		return nil, err
	}

	var edits []edit
	for _, p := range paras {
		if len(p.runs) == 0 {
			continue
		}
		text := p.Text()
		if text == "" {
			continue
		}
		translated, ok := translations[text]
		if !ok {
			return nil, fmt.Errorf("%w: %q at offset %d", ErrMissingTranslation, truncate(text, 60), p.start)
		}

		first := p.runs[0]
		switch {
		case first.selfClosing:
			edits = append(edits, edit{start: first.start, end: first.end,
				repl: "<a:r><a:t>" + escapeText(translated) + "</a:t></a:r>"})
		case first.text == nil:
			edits = append(edits, edit{start: first.closeStart, end: first.closeStart,
				repl: "<a:t>" + escapeText(translated) + "</a:t>"})
		case first.text.selfClosing:
			edits = append(edits, edit{start: first.text.start, end: first.text.end,
				repl: "<a:t>" + escapeText(translated) + "</a:t>"})
		default:
			edits = append(edits, edit{start: first.text.innerStart, end: first.text.innerEnd,
				repl: escapeText(translated)})
		}
		for _, r := range p.runs[1:] {
			edits = append(edits, edit{start: r.start, end: r.end})
		}
	}
	return applyEdits(data, edits)
}
