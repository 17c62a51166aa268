package upload

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCheckType(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		wantErr     bool
	}{
		{"mp4", "clip.mp4", "video/mp4", false},
		{"uppercase ext", "CLIP.MOV", "video/quicktime", false},
		{"octet stream", "clip.mkv", "application/octet-stream", false},
		{"empty type", "clip.webm", "", false},
		{"text file", "notes.txt", "text/plain", true},
		{"video ext wrong type", "clip.mp4", "image/png", true},
		{"no ext", "clip", "video/mp4", true},
		{"malformed type", "clip.mp4", "video/;;", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckType(tt.filename, tt.contentType)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckType() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnsupportedType) {
				t.Errorf("error = %v, want ErrUnsupportedType", err)
			}
		})
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 1024, nil)

	f, err := s.Save("My Clip.mp4", "video/mp4", strings.NewReader("frames"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if filepath.Dir(f.Path) != dir {
		t.Errorf("Path = %q, want under %q", f.Path, dir)
	}
	if !strings.HasSuffix(f.Path, "-My_Clip.mp4") {
		t.Errorf("Path = %q, want <uuid>-My_Clip.mp4", f.Path)
	}
	if f.OriginalName != "My Clip.mp4" || f.Size != 6 {
		t.Errorf("File = %+v", f)
	}
	if data, _ := os.ReadFile(f.Path); string(data) != "frames" {
		t.Errorf("content = %q", data)
	}
}

func TestSave_Rejections(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 4, nil)

	if _, err := s.Save("", "video/mp4", strings.NewReader("x")); !errors.Is(err, ErrNoFile) {
		t.Errorf("no name error = %v, want ErrNoFile", err)
	}
	if _, err := s.Save("a.mp4", "video/mp4", strings.NewReader("")); !errors.Is(err, ErrNoFile) {
		t.Errorf("empty body error = %v, want ErrNoFile", err)
	}
	if _, err := s.Save("a.exe", "application/x-msdownload", strings.NewReader("x")); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("bad type error = %v, want ErrUnsupportedType", err)
	}
	if _, err := s.Save("a.mp4", "video/mp4", strings.NewReader("12345")); !errors.Is(err, ErrTooLarge) {
		t.Errorf("oversize error = %v, want ErrTooLarge", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("rejected uploads left %d files behind", len(entries))
	}
}

func TestSave_MaxBytesReader(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 1024, nil)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(make([]byte, 64)))
	body := http.MaxBytesReader(httptest.NewRecorder(), req.Body, 16)

	if _, err := s.Save("a.mp4", "video/mp4", body); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Save() error = %v, want ErrTooLarge", err)
	}
}

func TestImport(t *testing.T) {
	inbox := t.TempDir()
	dir := t.TempDir()
	s := NewStore(dir, 1024, nil)

	src := filepath.Join(inbox, "Holiday.mkv")
	if err := os.WriteFile(src, []byte("frames"), 0644); err != nil {
		t.Fatal(err)
	}
	f, err := s.Import(src)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if !strings.HasSuffix(f.Path, "-Holiday.mkv") || f.OriginalName != "Holiday.mkv" {
		t.Errorf("File = %+v", f)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source still present: %v", err)
	}

	txt := filepath.Join(inbox, "readme.txt")
	os.WriteFile(txt, []byte("x"), 0644)
	if _, err := s.Import(txt); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("Import(txt) error = %v, want ErrUnsupportedType", err)
	}
}

func TestSweep(t *testing.T) {
	uploads := t.TempDir()
	output := t.TempDir()
	now := time.Now()
	old := now.Add(-3 * time.Hour)

	write := func(dir, name string, mod time.Time) string {
		t.Helper()
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(p, mod, mod); err != nil {
			t.Fatal(err)
		}
		return p
	}

	referencedOld := write(uploads, "a-ref.mp4", old)
	orphanOld := write(uploads, "b-orphan.mp4", old)
	orphanNew := write(uploads, "c-new.mp4", now)
	scratch := write(uploads, "d.wav", now)
	exportOld := write(output, "e.mp4", old)
	referencedScratch := write(output, "f.json", now)

	refs := map[string]bool{referencedOld: true, referencedScratch: true}
	rules := []SweepRule{{Dir: uploads, MaxAge: time.Hour}, {Dir: output}, {Dir: filepath.Join(uploads, "missing")}}

	n, err := Sweep(rules, refs, now, nil)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 2 {
		t.Errorf("removed = %d, want 2", n)
	}
	for _, p := range []string{referencedOld, orphanNew, exportOld, referencedScratch} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should be kept: %v", filepath.Base(p), err)
		}
	}
	for _, p := range []string{orphanOld, scratch} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should be removed", filepath.Base(p))
		}
	}
}
