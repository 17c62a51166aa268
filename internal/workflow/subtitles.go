package workflow

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/seia/seia-translator/internal/project"
	"github.com/seia/seia-translator/internal/subtitle"
)

// SubtitleFile describes one stored .srt file.
type SubtitleFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// SubtitleDocument is a loaded .srt file.
type SubtitleDocument struct {
	Filename string            `json:"filename"`
	Content  string            `json:"content"`
	Segments []project.Segment `json:"segments"`
}

// SaveSubtitles writes segments (translated text preferred) to
// subtitles/<filename>.srt and returns the stored name and content.
func (w *Workflow) SaveSubtitles(segments []project.Segment, filename string) (string, string, error) {
	if len(segments) == 0 {
		return "", "", fmt.Errorf("%w: segments are required", ErrInvalidInput)
	}
	if strings.TrimSpace(filename) == "" {
		return "", "", fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	for i, s := range segments {
		if !s.Valid() {
			return "", "", fmt.Errorf("%w: segment %d has invalid timing", ErrInvalidInput, i)
		}
	}

	name := subtitle.SanitizeFilename(strings.TrimSuffix(filename, ".srt")) + ".srt"
	content := subtitle.Encode(segments, true)
	if err := writeFile(filepath.Join(w.cfg.SubtitlesDir, name), content); err != nil {
		return "", "", err
	}
	return name, content, nil
}

// ListSubtitles returns the .srt files in the subtitles directory.
func (w *Workflow) ListSubtitles() ([]SubtitleFile, error) {
	entries, err := os.ReadDir(w.cfg.SubtitlesDir)
	if errors.Is(err, fs.ErrNotExist) {
		return []SubtitleFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read subtitles dir: %w", err)
	}

	files := []SubtitleFile{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".srt") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, SubtitleFile{
			Name: e.Name(),
			Path: filepath.Join(w.cfg.SubtitlesDir, e.Name()),
			Size: info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// LoadSubtitles reads and decodes one stored .srt file. A missing file
// returns an error wrapping fs.ErrNotExist.
func (w *Workflow) LoadSubtitles(filename string) (*SubtitleDocument, error) {
	path, err := w.SubtitlePath(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := string(data)
	return &SubtitleDocument{Filename: filepath.Base(path), Content: content, Segments: subtitle.Decode(content)}, nil
}

// SubtitlePath resolves a bare filename inside the subtitles directory.
func (w *Workflow) SubtitlePath(filename string) (string, error) {
	return within(w.cfg.SubtitlesDir, filename)
}

// OutputPath resolves a bare filename inside the output directory.
func (w *Workflow) OutputPath(filename string) (string, error) {
	return within(w.cfg.OutputDir, filename)
}

func within(dir, filename string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." || name != filename {
		return "", fmt.Errorf("%w: invalid filename %q", ErrInvalidInput, filename)
	}
	return filepath.Join(dir, name), nil
}
