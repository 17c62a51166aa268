package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no project has the requested id.
var ErrNotFound = errors.New("project not found")

// ChangeType names what happened to a project.
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Change describes one committed mutation.
type Change struct {
	Type      ChangeType `json:"type"`
	ProjectID string     `json:"projectId"`
	Project   *Project   `json:"project,omitempty"`
	At        time.Time  `json:"at"`
}

// Notifier receives committed changes. Notify must not block.
type Notifier interface {
	Notify(Change)
}

// Store is the project API the HTTP layer and the pipelines depend on.
type Store interface {
	Create(ctx context.Context, videoPath, originalName string) (*Project, error)
	Get(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
	Update(ctx context.Context, id string, patch Patch) (*Project, error)
	Delete(ctx context.Context, id string) error
}

// Service wraps a Repository with per-project locking, validation, file
// cleanup and change notification.
type Service struct {
	repo     Repository
	logger   *slog.Logger
	notifier Notifier
	locks    *keyedMutex
	now      func() time.Time

	defaultSource string
	defaultTarget string
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier publishes committed changes to n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithDefaultLanguages sets the languages given to new projects.
func WithDefaultLanguages(source, target string) Option {
	return func(s *Service) {
		s.defaultSource = source
		s.defaultTarget = target
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{
		repo:          repo,
		logger:        logger,
		locks:         newKeyedMutex(),
		now:           time.Now,
		defaultSource: "en",
		defaultTarget: "fr",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a freshly uploaded video.
func (s *Service) Create(ctx context.Context, videoPath, originalName string) (*Project, error) {
	if strings.TrimSpace(videoPath) == "" {
		return nil, fmt.Errorf("%w: video path is required", ErrInvalidPatch)
	}
	now := s.now().UTC()
	p := &Project{
		ID:                 uuid.NewString(),
		Name:               DisplayName(originalName),
		OriginalName:       originalName,
		VideoPath:          videoPath,
		CreatedAt:          now,
		UpdatedAt:          now,
		Status:             StatusUploaded,
		SourceLanguage:     s.defaultSource,
		TargetLanguage:     s.defaultTarget,
		Segments:           []Segment{},
		TranslatedSegments: []Segment{},
	}

	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}

	s.logger.Info("project created", "project_id", p.ID, "name", p.Name)
	s.notify(ChangeCreated, p.ID, p)
	return p.Clone(), nil
}

func (s *Service) Get(ctx context.Context, id string) (*Project, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// List returns every project, newest first.
func (s *Service) List(ctx context.Context) ([]*Project, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if all == nil {
		all = []*Project{}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return all, nil
}

// Update merges patch into the stored project and persists the result.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Project, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	p, err := s.repo.Update(ctx, id, func(p *Project) error {
		patch.Apply(p)
		p.normalize()
		if err := Validate(p); err != nil {
			return err
		}
		p.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidPatch) {
			return nil, err
		}
		return nil, fmt.Errorf("save project: %w", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}

	s.notify(ChangeUpdated, p.ID, p)
	return p.Clone(), nil
}

// Delete removes the project and, best effort, the files it owns.
func (s *Service) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	p, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if p == nil {
		return ErrNotFound
	}

	for _, f := range p.Files() {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove project file", "project_id", id, "path", f, "error", err)
		}
	}

	s.logger.Info("project deleted", "project_id", id)
	s.notify(ChangeDeleted, id, nil)
	return nil
}

// RecoverInterrupted moves projects stuck in a transient status back to
// the last status their data supports. It returns how many were changed.
func (s *Service) RecoverInterrupted(ctx context.Context) (int, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list projects: %w", err)
	}

	recovered := 0
	for _, p := range all {
		if !p.Status.Transient() {
			continue
		}
		next := RecoveredStatus(p)
		if _, err := s.Update(ctx, p.ID, Patch{Status: &next}); err != nil {
			return recovered, err
		}
		s.logger.Info("recovered interrupted project", "project_id", p.ID, "from", p.Status, "to", next)
		recovered++
	}
	return recovered, nil
}

// ReferencedFiles returns every file path some project points at.
func (s *Service) ReferencedFiles(ctx context.Context) (map[string]bool, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	refs := make(map[string]bool)
	for _, p := range all {
		for _, f := range p.Files() {
			refs[f] = true
		}
	}
	return refs, nil
}

func (s *Service) notify(t ChangeType, id string, p *Project) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(Change{Type: t, ProjectID: id, Project: p.Clone(), At: s.now().UTC()})
}
