// Package ui runs the optional system tray.
package ui

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"

	"github.com/getlantern/systray"

	"github.com/seia/seia-translator/internal/project"
)

//go:embed icon.png
var iconBytes []byte

// ProjectLister is the read side of the project store.
type ProjectLister interface {
	List(ctx context.Context) ([]*project.Project, error)
}

type Tray struct {
	projects ProjectLister
	changes  <-chan project.Change
	url      string
	logger   *slog.Logger

	statusItem   *systray.MenuItem
	projectsItem *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	Projects ProjectLister
	// Changes triggers a refresh of the menu labels.
	Changes <-chan project.Change
	URL     string
	Logger  *slog.Logger
	OnQuit  func()
}

func NewTray(cfg TrayConfig) *Tray {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tray{
		projects: cfg.Projects,
		changes:  cfg.Changes,
		url:      cfg.URL,
		logger:   logger,
		onQuit:   cfg.OnQuit,
	}
}

// Run blocks on the platform event loop; call it from the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("SEIA")
	systray.SetTooltip("SEIA Translator")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Pipeline activity")
	t.statusItem.Disable()

	t.projectsItem = systray.AddMenuItem("Projects: 0", "Stored projects")
	t.projectsItem.Disable()

	systray.AddSeparator()

	openItem := systray.AddMenuItem("Open in Browser", "Open "+t.url)

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit SEIA Translator")

	t.refresh()

	go func() {
		for {
			select {
			case _, ok := <-t.changes:
				if !ok {
					t.changes = nil
					continue
				}
				t.refresh()
			case <-openItem.ClickedCh:
				if err := openBrowser(t.url); err != nil {
					t.logger.Error("failed to open browser", "error", err)
				}
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) refresh() {
	if t.projects == nil {
		return
	}
	all, err := t.projects.List(context.Background())
	if err != nil {
		t.logger.Warn("tray refresh failed", "error", err)
		return
	}
	s := Summarize(all)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.statusItem.SetTitle(s.StatusLabel())
	t.projectsItem.SetTitle(s.ProjectsLabel())
}

func (t *Tray) Quit() {
	systray.Quit()
}

// Summary counts projects for the menu labels.
type Summary struct {
	Total        int
	Transcribing int
	Translating  int
	Exported     int
}

func Summarize(projects []*project.Project) Summary {
	s := Summary{Total: len(projects)}
	for _, p := range projects {
		switch p.Status {
		case project.StatusTranscribing:
			s.Transcribing++
		case project.StatusTranslating:
			s.Translating++
		case project.StatusExported:
			s.Exported++
		}
	}
	return s
}

func (s Summary) StatusLabel() string {
	switch {
	case s.Transcribing > 0 && s.Translating > 0:
		return fmt.Sprintf("Status: %d transcribing, %d translating", s.Transcribing, s.Translating)
	case s.Transcribing > 0:
		return fmt.Sprintf("Status: Transcribing (%d)", s.Transcribing)
	case s.Translating > 0:
		return fmt.Sprintf("Status: Translating (%d)", s.Translating)
	}
	return "Status: Idle"
}

func (s Summary) ProjectsLabel() string {
	if s.Exported == 0 {
		return fmt.Sprintf("Projects: %d", s.Total)
	}
	return fmt.Sprintf("Projects: %d (%d exported)", s.Total, s.Exported)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
