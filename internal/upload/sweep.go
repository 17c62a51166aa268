package upload

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var scratchExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".json": true,
	".tmp":  true,
}

// SweepRule describes one directory to clean. A zero MaxAge keeps files
// regardless of age; scratch artifacts are always eligible.
type SweepRule struct {
	Dir    string
	MaxAge time.Duration
}

// Sweep removes files under each rule's directory that no project
// references and that are either scratch artifacts or older than MaxAge.
// Referenced paths are never touched. Subdirectories are left alone.
func Sweep(rules []SweepRule, referenced map[string]bool, now time.Time, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	keep := make(map[string]bool, len(referenced))
	for p := range referenced {
		keep[filepath.Clean(p)] = true
	}

	removed := 0
	var errs []error
	for _, rule := range rules {
		entries, err := os.ReadDir(rule.Dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", rule.Dir, err))
			continue
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			path := filepath.Clean(filepath.Join(rule.Dir, e.Name()))
			if keep[path] {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			scratch := scratchExtensions[strings.ToLower(filepath.Ext(e.Name()))]
			expired := rule.MaxAge > 0 && now.Sub(info.ModTime()) > rule.MaxAge
			if !scratch && !expired {
				continue
			}
			if err := os.Remove(path); err != nil {
				errs = append(errs, err)
				continue
			}
			logger.Debug("swept file", "path", path, "scratch", scratch)
			removed++
		}
	}
	return removed, errors.Join(errs...)
}
