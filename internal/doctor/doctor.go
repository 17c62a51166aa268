// Package doctor probes the external tools the translator depends on.
package doctor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/seia/seia-translator/internal/media"
)

// extraPaths are searched after PATH; desktop launchers often start with a
// minimal PATH that misses package-manager installs.
var extraPaths = []string{"/usr/local/bin", "/opt/homebrew/bin", "/usr/bin", "/bin"}

// Check is the status of one dependency.
type Check struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Report summarises what the host can do.
type Report struct {
	FFmpeg  Check `json:"ffmpeg"`
	Whisper Check `json:"whisper"`
	Ollama  Check `json:"ollama"`
	OpenAI  Check `json:"openai"`

	OllamaModel  string   `json:"ollamaModel"`
	OllamaModels []string `json:"ollamaModels,omitempty"`
	ModelPulled  bool     `json:"modelPulled"`

	CanTranscribe bool      `json:"canTranscribe"`
	CanTranslate  bool      `json:"canTranslate"`
	CanExport     bool      `json:"canExport"`
	Ready         bool      `json:"ready"`
	ProbedAt      time.Time `json:"probedAt"`
}

// Missing lists the unavailable required components.
func (r *Report) Missing() []string {
	var out []string
	if !r.FFmpeg.Available {
		out = append(out, "ffmpeg")
	}
	if !r.CanTranscribe {
		out = append(out, "whisper")
	}
	if !r.Ollama.Available {
		out = append(out, "ollama")
	} else if !r.ModelPulled {
		out = append(out, "ollama model "+r.OllamaModel)
	}
	return out
}

// ModelLister is the part of the Ollama client the doctor needs.
type ModelLister interface {
	Models(ctx context.Context) ([]string, error)
	Model() string
	BaseURL() string
}

// Prober runs one round of checks.
type Prober interface {
	Probe(ctx context.Context) (*Report, error)
}

// Config selects the binaries and services to probe.
type Config struct {
	FFmpegBinary  string
	WhisperBinary string
	OpenAIEnabled bool
	Timeout       time.Duration
}

// Probe is the default Prober.
type Probe struct {
	cfg      Config
	runner   media.CommandRunner
	ollama   ModelLister
	lookPath func(string) (string, error)
	now      func() time.Time
}

func NewProbe(cfg Config, runner media.CommandRunner, ollama ModelLister) *Probe {
	if cfg.FFmpegBinary == "" {
		cfg.FFmpegBinary = "ffmpeg"
	}
	if cfg.WhisperBinary == "" {
		cfg.WhisperBinary = "whisper"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Probe{cfg: cfg, runner: runner, ollama: ollama, lookPath: lookPath, now: time.Now}
}

// Probe runs every check. It fails only when ctx is done; missing tools are
// reported in the Report.
func (p *Probe) Probe(ctx context.Context) (*Report, error) {
	r := &Report{}

	r.FFmpeg = p.binary(ctx, p.cfg.FFmpegBinary, "-version")
	r.Whisper = p.binary(ctx, p.cfg.WhisperBinary, "")

	if p.cfg.OpenAIEnabled {
		r.OpenAI = Check{Available: true}
	} else {
		r.OpenAI = Check{Error: "OPENAI_API_KEY not set"}
	}

	if p.ollama != nil {
		r.OllamaModel = p.ollama.Model()
		r.Ollama.Path = p.ollama.BaseURL()
		pctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		models, err := p.ollama.Models(pctx)
		cancel()
		if err != nil {
			r.Ollama.Error = err.Error()
		} else {
			r.Ollama.Available = true
			r.OllamaModels = models
			r.ModelPulled = hasModel(models, r.OllamaModel)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.CanTranscribe = r.FFmpeg.Available && (r.Whisper.Available || r.OpenAI.Available)
	r.CanTranslate = r.Ollama.Available && r.ModelPulled
	r.CanExport = r.FFmpeg.Available
	r.Ready = r.CanTranscribe && r.CanTranslate && r.CanExport
	r.ProbedAt = p.now()
	return r, nil
}

func (p *Probe) binary(ctx context.Context, name, versionFlag string) Check {
	path, err := p.lookPath(name)
	if err != nil {
		return Check{Error: fmt.Sprintf("%s not found", name)}
	}
	c := Check{Available: true, Path: path}
	if versionFlag == "" || p.runner == nil {
		return c
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	var out bytes.Buffer
	if _, err := p.runner.Run(ctx, media.Command{Name: path, Args: []string{versionFlag}, Stdout: &out}); err != nil {
		c.Available = false
		c.Error = err.Error()
		return c
	}
	c.Version = firstLine(out.String())
	return c
}

// hasModel matches "llama3.1" against "llama3.1:latest".
func hasModel(models []string, want string) bool {
	if want == "" {
		return false
	}
	return slices.ContainsFunc(models, func(m string) bool {
		return m == want || strings.TrimSuffix(m, ":latest") == want
	})
}

func firstLine(s string) string {
	sc := bufio.NewScanner(strings.NewReader(s))
	if sc.Scan() {
		return strings.TrimSpace(sc.Text())
	}
	return ""
}

func lookPath(name string) (string, error) {
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	if filepath.IsAbs(name) || strings.ContainsRune(name, os.PathSeparator) {
		return "", exec.ErrNotFound
	}
	for _, dir := range extraPaths {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, exec.ErrNotFound)
}
