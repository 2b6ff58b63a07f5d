// Package container handles the zip side of a document run: renaming the
// input between its office extension and .zip, staging rewritten parts in a
// scratch directory, and copying the source archive into the target with
// some entries replaced.
package container

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

// Errors reported by this package. Callers classify with errors.Is.
var (
	// ErrArchiveCorrupt: the source container cannot be opened or read.
	ErrArchiveCorrupt = errors.New("archive corrupt")
	// ErrArchiveWrite: the target container cannot be created or written.
	ErrArchiveWrite = errors.New("archive write error")
	// ErrScratchIO: the scratch directory cannot be created, written or read.
	ErrScratchIO = errors.New("scratch I/O error")
)

// Open opens a zip container for reading.
func Open(path string) (*zip.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArchiveCorrupt, path, err)
	}
	return zr, nil
}

// Names returns the entry names of zr in listing order.
func Names(zr *zip.Reader) []string {
	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	return names
}

// ReadEntry returns the uncompressed content of the named entry.
func ReadEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrArchiveCorrupt, name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrArchiveCorrupt, name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: no entry %s", ErrArchiveCorrupt, name)
}

// ---------------------------------------------------------------------------
// Copying
// ---------------------------------------------------------------------------

// Replacements supplies new content for some entries of a container.
type Replacements interface {
	// Names returns the replaced entry names.
	Names() []string
	// Has reports whether name is replaced.
	Has(name string) bool
	// Open returns the new content of name.
	Open(name string) (io.ReadCloser, error)
}

// Copy writes every entry of src to dst in listing order. Entries named by
// repl are written under their original header with the new content; every
// other entry is transferred raw, so its compressed bytes, CRC and header
// are unchanged. The archive comment is kept.
//
// Every replaced name must exist in src: the output always has exactly the
// source's entry set.
func Copy(dst io.Writer, src *zip.Reader, repl Replacements) error {
	present := make(map[string]bool, len(src.File))
	for _, f := range src.File {
		present[f.Name] = true
	}
	for _, name := range repl.Names() {
		if !present[name] {
			return fmt.Errorf("%w: replacement %s is not an entry of the source", ErrArchiveWrite, name)
		}
	}

	zw := zip.NewWriter(dst)
	for _, f := range src.File {
		var err error
		if repl.Has(f.Name) {
			err = replaceEntry(zw, f, repl)
		} else {
			err = copyEntry(zw, f)
		}
		if err != nil {
			return err
		}
	}
	if err := zw.SetComment(src.Comment); err != nil {
		return fmt.Errorf("%w: %v", ErrArchiveWrite, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrArchiveWrite, err)
	}
	return nil
}

func copyEntry(zw *zip.Writer, f *zip.File) error {
	r, err := f.OpenRaw()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrArchiveCorrupt, f.Name, err)
	}
	w, err := zw.CreateRaw(&f.FileHeader)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrArchiveWrite, f.Name, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrArchiveWrite, f.Name, err)
	}
	return nil
}

func replaceEntry(zw *zip.Writer, f *zip.File, repl Replacements) error {
	hdr := f.FileHeader
	// Keep the MS-DOS timestamp fields as they are; a non-zero Modified
	// would make the writer append a second extended-timestamp field.
	hdr.Modified = time.Time{}

	w, err := zw.CreateHeader(&hdr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrArchiveWrite, f.Name, err)
	}
	rc, err := repl.Open(f.Name)
	if err != nil {
		return err
	}
	defer rc.Close()
	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrArchiveWrite, f.Name, err)
	}
	return nil
}

// CopyFile copies the file at src to dst unchanged.
func CopyFile(dst io.Writer, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
	}
	defer in.Close()
	if _, err := io.Copy(dst, in); err != nil {
		return fmt.Errorf("%w: %v", ErrArchiveWrite, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// In-memory replacements
// ---------------------------------------------------------------------------

// Bytes is a Replacements backed by a map.
type Bytes map[string][]byte

// Names implements Replacements.
func (b Bytes) Names() []string {
	names := make([]string, 0, len(b))
	for n := range b {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has implements Replacements.
func (b Bytes) Has(name string) bool {
	_, ok := b[name]
	return ok
}

// Open implements Replacements.
func (b Bytes) Open(name string) (io.ReadCloser, error) {
	data, ok := b[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not staged", ErrScratchIO, name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
