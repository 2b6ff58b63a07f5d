// Package ooxml locates and rewrites translatable text inside the parts of
// Office Open XML containers.
//
// Three container formats are supported, each described by a Variant:
//
//   - Presentation (.pptx): every ppt/slides/slideN.xml, structural rewrite
//   - WrittenDocument (.docx): word/document.xml, textual rewrite of <w:t>
//   - Spreadsheet (.xlsx): xl/sharedStrings.xml, textual rewrite of <t>
//
// A Variant pairs a Locator (which finds the text) with a Rewriter (which
// substitutes translations back). Both work on the raw bytes of a single part;
// opening and writing the archive itself is the container package's job.
package ooxml

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Errors reported by this package. Callers classify with errors.Is.
var (
	// ErrBadExtension: the file is not one of the supported container formats.
	ErrBadExtension = errors.New("unsupported file extension")
	// ErrMalformedPart: a part could not be decoded as well-formed UTF-8 XML.
	ErrMalformedPart = errors.New("malformed part")
	// ErrMissingTranslation: a located text has no entry in the translation map.
	ErrMissingTranslation = errors.New("missing translation")
)

// ---------------------------------------------------------------------------
// Formats
// ---------------------------------------------------------------------------

// Format identifies the kind of office container.
type Format int

const (
	// Presentation is a slide deck (.pptx).
	Presentation Format = iota + 1
	// WrittenDocument is a word-processing document (.docx).
	WrittenDocument
	// Spreadsheet is a workbook (.xlsx); only its shared-string table is translated.
	Spreadsheet
)

func (f Format) String() string {
	switch f {
	case Presentation:
		return "presentation"
	case WrittenDocument:
		return "document"
	case Spreadsheet:
		return "spreadsheet"
	}
	return "unknown"
}

// Strategy tells how a variant substitutes translations.
type Strategy int

const (
	// Structural edits a parsed paragraph/run model and keeps run formatting.
	Structural Strategy = iota
	// Textual performs tag-bounded substitution on the serialized markup.
	Textual
)

func (s Strategy) String() string {
	if s == Structural {
		return "structural"
	}
	return "textual"
}

// Span is one located occurrence of translatable text.
type Span struct {
	// Part is the container entry the span was found in.
	Part string
	// Text is the decoded text (for presentations, the paragraph aggregate).
	Text string
	// Raw is the markup between the tags as stored (textual formats only).
	Raw string
	// OpenTag is the opening tag as written (textual formats only).
	OpenTag string
	// Offset is the byte offset of the element or paragraph in the part.
	Offset int64
}

// Locator finds translatable spans in one part. A Locator lives for one
// document: presentation locators remember paragraphs already produced by
// earlier slides of the same document.
type Locator interface {
	Locate(part string, data []byte) ([]Span, error)
}

// Rewriter substitutes translations into one part and returns its new bytes.
type Rewriter interface {
	Rewrite(data []byte, translations map[string]string) ([]byte, error)
}

// Variant bundles everything format-specific the pipeline needs.
type Variant struct {
	Format    Format
	Extension string
	Strategy  Strategy
	// Parts selects the entries holding translatable text from the
	// container's entry names, in processing order.
	Parts func(names []string) []string
	// NewLocator returns a locator scoped to a single document.
	NewLocator func() Locator
	// Rewriter substitutes translations into a part.
	Rewriter Rewriter
}

var variants = map[Format]Variant{
	Presentation: {
		Format:     Presentation,
		Extension:  ".pptx",
		Strategy:   Structural,
		Parts:      slideParts,
		NewLocator: func() Locator { return newSlideLocator() },
		Rewriter:   slideRewriter{},
	},
	WrittenDocument: {
		Format:     WrittenDocument,
		Extension:  ".docx",
		Strategy:   Textual,
		Parts:      fixedPart(DocumentPart),
		NewLocator: func() Locator { return textLocator{spec: documentText} },
		Rewriter:   textRewriter{spec: documentText},
	},
	Spreadsheet: {
		Format:     Spreadsheet,
		Extension:  ".xlsx",
		Strategy:   Textual,
		Parts:      fixedPart(SharedStringsPart),
		NewLocator: func() Locator { return textLocator{spec: sharedStringText} },
		Rewriter:   textRewriter{spec: sharedStringText},
	},
}

// Lookup returns the variant for a format.
func Lookup(f Format) (Variant, bool) {
	v, ok := variants[f]
	return v, ok
}

// Variants returns all supported variants ordered by format.
func Variants() []Variant {
	out := make([]Variant, 0, len(variants))
	for _, v := range variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Format < out[j].Format })
	return out
}

// Extensions returns the supported file extensions.
func Extensions() []string {
	var exts []string
	for _, v := range Variants() {
		exts = append(exts, v.Extension)
	}
	return exts
}

// FormatOf resolves the container format from a file name's extension
// (case-insensitive).
func FormatOf(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, v := range variants {
		if v.Extension == ext {
			return v.Format, nil
		}
	}
	if ext == "" {
		return 0, fmt.Errorf("%w: %s has no extension (supported: %s)", ErrBadExtension, filepath.Base(path), strings.Join(Extensions(), ", "))
	}
	return 0, fmt.Errorf("%w: %q (supported: %s)", ErrBadExtension, ext, strings.Join(Extensions(), ", "))
}

// ---------------------------------------------------------------------------
// Part discovery
// ---------------------------------------------------------------------------

const (
	// DocumentPart is the main body of a word-processing document.
	DocumentPart = "word/document.xml"
	// SharedStringsPart is the shared-string table of a workbook.
	SharedStringsPart = "xl/sharedStrings.xml"
)

var reSlidePart = regexp.MustCompile(`^ppt/slides/slide([0-9]+)\.xml$`)

// slideParts returns every slide entry ordered by slide number. The number
// of slides is whatever the container holds.
func slideParts(names []string) []string {
	type slide struct {
		name string
		num  int
	}
	var slides []slide
	for _, name := range names {
		m := reSlidePart.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slide{name: name, num: n})
	}
	sort.SliceStable(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	parts := make([]string, len(slides))
	for i, s := range slides {
		parts[i] = s.name
	}
	return parts
}

// fixedPart selects a single well-known entry when the container has it.
// A workbook without any text has no shared-string table at all.
func fixedPart(want string) func([]string) []string {
	return func(names []string) []string {
		for _, name := range names {
			if name == want {
				return []string{want}
			}
		}
		return nil
	}
}
