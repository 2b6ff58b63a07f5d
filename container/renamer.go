package container

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/minios-linux/doctrans/ooxml"
)

// ContainerExt is the extension a document carries while it is processed.
const ContainerExt = ".zip"

// DefaultSuffix is appended to the base name of translated outputs.
const DefaultSuffix = "_translated"

// Renamer moves a document through Original → Container → Original.
//
// Enter renames name.pptx to name.pptx.zip. CreateTarget opens the output
// container <out>/name<suffix>.pptx.zip. Leave renames the source back to
// name.pptx and, if the target was produced, renames it to
// <out>/name<suffix>.pptx; otherwise the partial target is removed.
// Container names keep the original extension, so name.pptx and name.docx
// can be processed at the same time.
type Renamer struct {
	path      string
	outputDir string
	suffix    string

	ext       string
	zipPath   string
	targetZip string
	finalPath string

	entered bool
	created bool
	left    bool
}

// NewRenamer prepares a renamer for path. An empty outputDir means the
// directory of path; an empty suffix means DefaultSuffix.
func NewRenamer(path, outputDir, suffix string) *Renamer {
	if outputDir == "" {
		outputDir = filepath.Dir(path)
	}
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return &Renamer{path: path, outputDir: outputDir, suffix: suffix}
}

// Enter validates the extension and renames the document to its container
// name. Nothing is renamed when it fails.
func (r *Renamer) Enter() (ooxml.Format, error) {
	if r.entered {
		return 0, fmt.Errorf("%s: already entered", r.path)
	}
	format, err := ooxml.FormatOf(r.path)
	if err != nil {
		return 0, err
	}

	r.ext = filepath.Ext(r.path)
	stem := strings.TrimSuffix(filepath.Base(r.path), r.ext)
	r.zipPath = r.path + ContainerExt
	r.finalPath = filepath.Join(r.outputDir, stem+r.suffix+r.ext)
	r.targetZip = r.finalPath + ContainerExt

	if sameFile(r.targetZip, r.zipPath) {
		return 0, fmt.Errorf("%w: output %s would overwrite the source", ErrArchiveWrite, r.targetZip)
	}
	if _, err := os.Stat(r.path); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
	}
	if err := renameNoClobber(r.path, r.zipPath); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrArchiveWrite, err)
	}
	r.entered = true
	return format, nil
}

// ContainerPath is the source's name while entered.
func (r *Renamer) ContainerPath() string { return r.zipPath }

// FinalPath is where the translated document ends up.
func (r *Renamer) FinalPath() string { return r.finalPath }

// CreateTarget creates the output container exclusively. It fails with
// ErrArchiveWrite when the container or the final output already exists.
func (r *Renamer) CreateTarget() (*os.File, error) {
	if !r.entered {
		return nil, fmt.Errorf("%s: CreateTarget before Enter", r.path)
	}
	if _, err := os.Lstat(r.finalPath); err == nil {
		return nil, fmt.Errorf("%w: %s already exists", ErrArchiveWrite, r.finalPath)
	}
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveWrite, err)
	}
	f, err := os.OpenFile(r.targetZip, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveWrite, err)
	}
	r.created = true
	return f, nil
}

// Leave restores the source's extension. If produced, the target container
// takes its final name; otherwise a created target is removed. Leave is a
// no-op before Enter and after the first call.
func (r *Renamer) Leave(produced bool) error {
	if !r.entered || r.left {
		return nil
	}
	r.left = true

	var errs []error
	if err := os.Rename(r.zipPath, r.path); err != nil {
		errs = append(errs, fmt.Errorf("restoring %s: %w", r.path, err))
	}
	if r.created {
		if produced {
			if err := renameNoClobber(r.targetZip, r.finalPath); err != nil {
				errs = append(errs, fmt.Errorf("%w: %v", ErrArchiveWrite, err))
			}
		} else if err := os.Remove(r.targetZip); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("removing %s: %w", r.targetZip, err))
		}
	}
	return errors.Join(errs...)
}

// renameNoClobber renames oldpath to newpath and fails if newpath exists.
// The hard link makes the existence check and the rename one step; file
// systems without hard links fall back to check-then-rename.
func renameNoClobber(oldpath, newpath string) error {
	err := os.Link(oldpath, newpath)
	if err == nil {
		return os.Remove(oldpath)
	}
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s already exists", newpath)
	}
	if _, serr := os.Lstat(newpath); serr == nil {
		return fmt.Errorf("%s already exists", newpath)
	}
	return os.Rename(oldpath, newpath)
}

func sameFile(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return aa == bb
}
