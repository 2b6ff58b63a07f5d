package pipeline

import (
	"fmt"

	"github.com/minios-linux/doctrans/container"
	"github.com/minios-linux/doctrans/ooxml"
	"github.com/minios-linux/doctrans/translate"
)

// PartReport counts the spans found in one part.
type PartReport struct {
	Name  string
	Spans int
}

// Report is what a translation of a document would send to the service.
type Report struct {
	Path     string
	Format   ooxml.Format
	Strategy ooxml.Strategy
	Parts    []PartReport
	Spans    int
	Distinct []string
}

// Inspect locates the translatable text of the document at path without
// translating or renaming anything.
func Inspect(path string) (*Report, error) {
	format, err := ooxml.FormatOf(path)
	if err != nil {
		return nil, err
	}
	variant, ok := ooxml.Lookup(format)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ooxml.ErrBadExtension, format)
	}

	zr, err := container.Open(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	rep := &Report{Path: path, Format: format, Strategy: variant.Strategy}
	locator := variant.NewLocator()
	var spans []ooxml.Span
	for _, name := range variant.Parts(container.Names(&zr.Reader)) {
		data, err := container.ReadEntry(&zr.Reader, name)
		if err != nil {
			return nil, err
		}
		found, err := locator.Locate(name, data)
		if err != nil {
			return nil, err
		}
		rep.Parts = append(rep.Parts, PartReport{Name: name, Spans: len(found)})
		spans = append(spans, found...)
	}
	rep.Spans = len(spans)
	rep.Distinct = translate.Distinct(spans, func(s ooxml.Span) string { return s.Text })
	return rep, nil
}
