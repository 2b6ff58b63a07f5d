package container

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minios-linux/doctrans/ooxml"
)

type entry struct {
	name   string
	body   string
	method uint16
}

func buildZip(t *testing.T, comment string, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: e.method})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, e.body); err != nil {
			t.Fatal(err)
		}
	}
	if comment != "" {
		if err := zw.SetComment(comment); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func rawBytes(t *testing.T, f *zip.File) []byte {
	t.Helper()
	r, err := f.OpenRaw()
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// ---------------------------------------------------------------------------
// Copy
// ---------------------------------------------------------------------------

func TestCopyKeepsEntrySetAndUntouchedBytes(t *testing.T) {
	src := buildZip(t, "deck comment",
		entry{"[Content_Types].xml", "<Types/>", zip.Deflate},
		entry{"ppt/media/image1.png", "\x89PNG not really", zip.Store},
		entry{"ppt/slides/slide1.xml", "<a:t>Cześć</a:t>", zip.Deflate},
		entry{"docProps/app.xml", strings.Repeat("<x/>", 100), zip.Deflate},
	)
	zr, err := zip.NewReader(bytes.NewReader(src), int64(len(src)))
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	repl := Bytes{"ppt/slides/slide1.xml": []byte("<a:t>Hello</a:t>")}
	if err := Copy(&out, zr, repl); err != nil {
		t.Fatalf("Copy: %v", err)
	}

	got, err := zip.NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if strings.Join(Names(got), "|") != strings.Join(Names(zr), "|") {
		t.Fatalf("entry names = %v, want %v", Names(got), Names(zr))
	}
	if got.Comment != "deck comment" {
		t.Errorf("comment = %q", got.Comment)
	}

	for i, f := range got.File {
		orig := zr.File[i]
		if f.Method != orig.Method {
			t.Errorf("%s: method %d, want %d", f.Name, f.Method, orig.Method)
		}
		if repl.Has(f.Name) {
			continue
		}
		if !bytes.Equal(rawBytes(t, f), rawBytes(t, orig)) {
			t.Errorf("%s: raw bytes changed", f.Name)
		}
		if f.CRC32 != orig.CRC32 {
			t.Errorf("%s: CRC changed", f.Name)
		}
	}

	data, err := ReadEntry(got, "ppt/slides/slide1.xml")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "<a:t>Hello</a:t>" {
		t.Errorf("replaced entry = %q", data)
	}
}

func TestCopyRejectsUnknownReplacement(t *testing.T) {
	src := buildZip(t, "", entry{"word/document.xml", "<w:t>x</w:t>", zip.Deflate})
	zr, _ := zip.NewReader(bytes.NewReader(src), int64(len(src)))

	err := Copy(io.Discard, zr, Bytes{"word/other.xml": []byte("x")})
	if !errors.Is(err, ErrArchiveWrite) {
		t.Fatalf("err = %v, want ErrArchiveWrite", err)
	}
}

func TestCopyFromScratch(t *testing.T) {
	src := buildZip(t, "", entry{"xl/sharedStrings.xml", "<t>a</t>", zip.Deflate}, entry{"xl/workbook.xml", "<wb/>", zip.Deflate})
	zr, _ := zip.NewReader(bytes.NewReader(src), int64(len(src)))

	s, err := NewScratch(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Remove()
	if err := s.Stage("xl/sharedStrings.xml", []byte("<t>b</t>")); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := Copy(&out, zr, s); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	got, _ := zip.NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
	data, err := ReadEntry(got, "xl/sharedStrings.xml")
	if err != nil || string(data) != "<t>b</t>" {
		t.Fatalf("ReadEntry = %q, %v", data, err)
	}
}

func TestOpenCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.zip")
	if err := os.WriteFile(path, []byte("this is not a zip"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); !errors.Is(err, ErrArchiveCorrupt) {
		t.Fatalf("Open = %v, want ErrArchiveCorrupt", err)
	}
}

func TestReadEntryMissing(t *testing.T) {
	src := buildZip(t, "", entry{"a", "b", zip.Store})
	zr, _ := zip.NewReader(bytes.NewReader(src), int64(len(src)))
	if _, err := ReadEntry(zr, "missing"); !errors.Is(err, ErrArchiveCorrupt) {
		t.Fatalf("err = %v", err)
	}
}

func TestCopyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.bin")
	os.WriteFile(path, []byte("payload"), 0644)
	var out bytes.Buffer
	if err := CopyFile(&out, path); err != nil || out.String() != "payload" {
		t.Fatalf("CopyFile = %q, %v", out.String(), err)
	}
}

// ---------------------------------------------------------------------------
// Scratch
// ---------------------------------------------------------------------------

func TestScratchLifecycle(t *testing.T) {
	root := t.TempDir()
	s, err := NewScratch(root)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(filepath.Base(s.Dir()), "doctrans-") {
		t.Errorf("scratch dir = %s", s.Dir())
	}

	other, err := NewScratch(root)
	if err != nil {
		t.Fatal(err)
	}
	if other.Dir() == s.Dir() {
		t.Errorf("two scratch areas share %s", s.Dir())
	}
	other.Remove()

	if err := s.Stage("word/document.xml", []byte("new")); err != nil {
		t.Fatal(err)
	}
	if !s.Has("word/document.xml") || s.Has("word/styles.xml") {
		t.Errorf("Has() is wrong")
	}
	if names := s.Names(); len(names) != 1 || names[0] != "word/document.xml" {
		t.Errorf("Names() = %v", names)
	}
	rc, err := s.Open("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "new" {
		t.Errorf("Open() = %q", data)
	}
	if _, err := s.Open("nope"); !errors.Is(err, ErrScratchIO) {
		t.Errorf("Open(nope) = %v", err)
	}
	if err := s.Stage("../escape.xml", nil); !errors.Is(err, ErrScratchIO) {
		t.Errorf("Stage(../escape.xml) = %v", err)
	}

	if err := s.Remove(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.Dir()); !os.IsNotExist(err) {
		t.Errorf("scratch dir still exists")
	}
}

// ---------------------------------------------------------------------------
// Renamer
// ---------------------------------------------------------------------------

func TestRenamerProducesOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.pptx")
	os.WriteFile(path, []byte("source"), 0644)

	r := NewRenamer(path, "", "")
	format, err := r.Enter()
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if format != ooxml.Presentation {
		t.Errorf("format = %v", format)
	}
	if r.ContainerPath() != filepath.Join(dir, "deck.pptx.zip") {
		t.Errorf("ContainerPath = %s", r.ContainerPath())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("source still has its original name while entered")
	}

	f, err := r.CreateTarget()
	if err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}
	f.WriteString("target")
	f.Close()

	if err := r.Leave(true); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if got, _ := os.ReadFile(path); string(got) != "source" {
		t.Errorf("source = %q", got)
	}
	want := filepath.Join(dir, "deck_translated.pptx")
	if r.FinalPath() != want {
		t.Errorf("FinalPath = %s, want %s", r.FinalPath(), want)
	}
	if got, _ := os.ReadFile(want); string(got) != "target" {
		t.Errorf("output = %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.zip"))
	if len(matches) != 0 {
		t.Errorf("containers left behind: %v", matches)
	}

	if err := r.Leave(true); err != nil {
		t.Errorf("second Leave: %v", err)
	}
}

func TestRenamerFailedRunRemovesTarget(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	path := filepath.Join(dir, "Report.DOCX")
	os.WriteFile(path, []byte("source"), 0644)

	r := NewRenamer(path, out, "_en")
	if format, err := r.Enter(); err != nil || format != ooxml.WrittenDocument {
		t.Fatalf("Enter = %v, %v", format, err)
	}
	f, err := r.CreateTarget()
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	if err := r.Leave(false); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("source not restored: %v", err)
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 0 {
		t.Errorf("output dir not empty: %v", entries)
	}
}

func TestRenamerBadExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	os.WriteFile(path, []byte("text"), 0644)

	r := NewRenamer(path, "", "")
	if _, err := r.Enter(); !errors.Is(err, ooxml.ErrBadExtension) {
		t.Fatalf("Enter = %v, want ErrBadExtension", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file was touched: %v", err)
	}
	if err := r.Leave(false); err != nil {
		t.Errorf("Leave before Enter: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1", len(entries))
	}
}

func TestRenamerTargetCollision(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.xlsx")
	os.WriteFile(path, []byte("source"), 0644)
	os.WriteFile(filepath.Join(dir, "book_translated.xlsx"), []byte("old"), 0644)

	r := NewRenamer(path, "", "")
	if _, err := r.Enter(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateTarget(); !errors.Is(err, ErrArchiveWrite) {
		t.Fatalf("CreateTarget = %v, want ErrArchiveWrite", err)
	}
	if err := r.Leave(false); err != nil {
		t.Fatal(err)
	}
	if got, _ := os.ReadFile(filepath.Join(dir, "book_translated.xlsx")); string(got) != "old" {
		t.Errorf("existing output overwritten: %q", got)
	}
	if got, _ := os.ReadFile(path); string(got) != "source" {
		t.Errorf("source = %q", got)
	}
}

func TestRenamerContainerNameTaken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.pptx")
	os.WriteFile(path, []byte("source"), 0644)
	taken := filepath.Join(dir, "deck.pptx.zip")
	os.WriteFile(taken, []byte("unrelated"), 0644)

	if _, err := NewRenamer(path, "", "").Enter(); !errors.Is(err, ErrArchiveWrite) {
		t.Fatalf("Enter = %v, want ErrArchiveWrite", err)
	}
	if got, _ := os.ReadFile(taken); string(got) != "unrelated" {
		t.Errorf("deck.pptx.zip overwritten")
	}
	if got, _ := os.ReadFile(path); string(got) != "source" {
		t.Errorf("source = %q", got)
	}
}

func TestRenamerSameStemDifferentFormats(t *testing.T) {
	dir := t.TempDir()
	deck := filepath.Join(dir, "report.pptx")
	doc := filepath.Join(dir, "report.docx")
	os.WriteFile(deck, []byte("deck"), 0644)
	os.WriteFile(doc, []byte("doc"), 0644)

	rd := NewRenamer(deck, "", "")
	rw := NewRenamer(doc, "", "")
	if _, err := rd.Enter(); err != nil {
		t.Fatalf("Enter(pptx): %v", err)
	}
	if _, err := rw.Enter(); err != nil {
		t.Fatalf("Enter(docx): %v", err)
	}
	if rd.ContainerPath() == rw.ContainerPath() {
		t.Fatalf("both documents use %s", rd.ContainerPath())
	}

	for _, r := range []*Renamer{rd, rw} {
		f, err := r.CreateTarget()
		if err != nil {
			t.Fatalf("CreateTarget: %v", err)
		}
		f.WriteString(filepath.Ext(r.FinalPath()))
		f.Close()
	}
	for _, r := range []*Renamer{rd, rw} {
		if err := r.Leave(true); err != nil {
			t.Fatalf("Leave: %v", err)
		}
	}

	for path, want := range map[string]string{
		deck: "deck",
		doc:  "doc",
		filepath.Join(dir, "report_translated.pptx"): ".pptx",
		filepath.Join(dir, "report_translated.docx"): ".docx",
	} {
		if got, _ := os.ReadFile(path); string(got) != want {
			t.Errorf("%s = %q, want %q", filepath.Base(path), got, want)
		}
	}
}

func TestRenameNoClobber(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	os.WriteFile(a, []byte("a"), 0644)
	os.WriteFile(b, []byte("b"), 0644)

	if err := renameNoClobber(a, b); err == nil {
		t.Fatal("renameNoClobber over an existing file succeeded")
	}
	if got, _ := os.ReadFile(b); string(got) != "b" {
		t.Errorf("b = %q", got)
	}
	if got, _ := os.ReadFile(a); string(got) != "a" {
		t.Errorf("a = %q", got)
	}

	c := filepath.Join(dir, "c")
	if err := renameNoClobber(a, c); err != nil {
		t.Fatalf("renameNoClobber: %v", err)
	}
	if _, err := os.Stat(a); !os.IsNotExist(err) {
		t.Errorf("a still exists")
	}
	if got, _ := os.ReadFile(c); string(got) != "a" {
		t.Errorf("c = %q", got)
	}
}
