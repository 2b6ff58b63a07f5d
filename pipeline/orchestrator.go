// Package pipeline runs the translation of office containers: one
// Orchestrator per document, and a Batch that drives many documents and
// records a per-file result.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/minios-linux/doctrans/container"
	"github.com/minios-linux/doctrans/ooxml"
	"github.com/minios-linux/doctrans/translate"
)

// Options configures a document run. The language pair travels with the
// options; nothing about a run is global.
type Options struct {
	// Pair is the source and target language.
	Pair translate.LanguagePair
	// Client performs the translations.
	Client translate.Client
	// Workers is the translation pool size per document (0 = translate.DefaultWorkers).
	Workers int
	// OutputDir receives the translated documents (empty = next to the input).
	OutputDir string
	// Suffix is appended to the output base name (empty = "_translated").
	Suffix string
	// ScratchDir is the parent of per-run scratch directories (empty = os.TempDir()).
	ScratchDir string
	// OnProgress is called after each distinct string of a document is translated.
	OnProgress func(file string, done, total int)
	// OnLog emits log messages during the run.
	OnLog func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

// Orchestrator translates one document at a time. It holds no per-document
// state, so one value may run several documents concurrently.
type Orchestrator struct {
	opts Options
}

// New returns an orchestrator for opts.
func New(opts Options) *Orchestrator {
	return &Orchestrator{opts: opts}
}

// partData is one translatable part of the document being processed.
type partData struct {
	name string
	data []byte
}

// Run translates the document at path and returns the path of the
// translated output. On any error no output is left behind and the source
// keeps its original name.
func (o *Orchestrator) Run(ctx context.Context, path string) (output string, err error) {
	if err := o.opts.Pair.Validate(); err != nil {
		return "", err
	}
	if o.opts.Client == nil {
		return "", fmt.Errorf("%s: no translation client", path)
	}

	ren := container.NewRenamer(path, o.opts.OutputDir, o.opts.Suffix)
	format, err := ren.Enter()
	if err != nil {
		return "", err
	}
	produced := false
	defer func() {
		if lerr := ren.Leave(produced); lerr != nil && err == nil {
			err = lerr
		}
		if err == nil {
			output = ren.FinalPath()
		}
	}()

	variant, ok := ooxml.Lookup(format)
	if !ok {
		return "", fmt.Errorf("%w: %s", ooxml.ErrBadExtension, format)
	}

	zr, err := container.Open(ren.ContainerPath())
	if err != nil {
		return "", err
	}
	defer zr.Close()

	scratch, err := container.NewScratch(o.opts.ScratchDir)
	if err != nil {
		return "", err
	}
	defer func() {
		if rerr := scratch.Remove(); rerr != nil {
			o.opts.log("%s: removing %s: %v", filepath.Base(path), scratch.Dir(), rerr)
		}
	}()

	var parts []partData
	for _, name := range variant.Parts(container.Names(&zr.Reader)) {
		data, err := container.ReadEntry(&zr.Reader, name)
		if err != nil {
			return "", err
		}
		parts = append(parts, partData{name: name, data: data})
	}

	// Locate
	locator := variant.NewLocator()
	var spans []ooxml.Span
	for _, p := range parts {
		found, err := locator.Locate(p.name, p.data)
		if err != nil {
			return "", err
		}
		spans = append(spans, found...)
	}
	texts := translate.Distinct(spans, func(s ooxml.Span) string { return s.Text })
	o.opts.log("%s: %s, %d part(s), %d span(s), %d distinct string(s)",
		filepath.Base(path), format, len(parts), len(spans), len(texts))

	// Translate
	exec := &translate.Executor{Client: o.opts.Client, Workers: o.opts.Workers}
	if o.opts.OnProgress != nil {
		exec.OnProgress = func(done, total int) { o.opts.OnProgress(path, done, total) }
	}
	tm, err := exec.Run(ctx, texts, o.opts.Pair)
	if err != nil {
		return "", err
	}

	// Rewrite and stage
	for _, p := range parts {
		out, err := variant.Rewriter.Rewrite(p.data, tm)
		if err != nil {
			return "", fmt.Errorf("%s: %w", p.name, err)
		}
		if bytes.Equal(out, p.data) {
			continue
		}
		if err := scratch.Stage(p.name, out); err != nil {
			return "", err
		}
	}

	// Write the target container
	target, err := ren.CreateTarget()
	if err != nil {
		return "", err
	}
	if len(scratch.Names()) == 0 {
		err = container.CopyFile(target, ren.ContainerPath())
	} else {
		err = container.Copy(target, &zr.Reader, scratch)
	}
	if cerr := target.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("%w: %v", container.ErrArchiveWrite, cerr)
	}
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	produced = true
	return "", nil
}
