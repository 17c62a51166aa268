package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 25 * time.Millisecond

// FileRepository keeps every project in a single JSON ledger file that is
// rewritten whole on each mutation. An in-process mutex serializes access
// within the server and an advisory lock file serializes it across
// processes, so the CLI and a running server never clobber each other.
type FileRepository struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFileRepository opens the ledger at path, creating its directory.
// A missing ledger is treated as empty.
func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	return &FileRepository{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the ledger file location.
func (r *FileRepository) Path() string {
	return r.path
}

func (r *FileRepository) Insert(ctx context.Context, p *Project) error {
	return r.mutate(ctx, func(all []*Project) ([]*Project, error) {
		for _, existing := range all {
			if existing.ID == p.ID {
				return nil, fmt.Errorf("project %s already exists", p.ID)
			}
		}
		return append(all, p.Clone()), nil
	})
}

func (r *FileRepository) Get(ctx context.Context, id string) (*Project, error) {
	all, err := r.read(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (r *FileRepository) List(ctx context.Context) ([]*Project, error) {
	return r.read(ctx)
}

func (r *FileRepository) Update(ctx context.Context, id string, fn func(*Project) error) (*Project, error) {
	var updated *Project
	err := r.mutate(ctx, func(all []*Project) ([]*Project, error) {
		for i, p := range all {
			if p.ID != id {
				continue
			}
			next := p.Clone()
			if err := fn(next); err != nil {
				return nil, err
			}
			all[i] = next
			updated = next.Clone()
			return all, nil
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *FileRepository) Delete(ctx context.Context, id string) (*Project, error) {
	var removed *Project
	err := r.mutate(ctx, func(all []*Project) ([]*Project, error) {
		for i, p := range all {
			if p.ID == id {
				removed = p
				return append(all[:i], all[i+1:]...), nil
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *FileRepository) read(ctx context.Context) ([]*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	locked, err := r.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock ledger: %w", err)
	}
	if !locked {
		return nil, errors.New("lock ledger: not acquired")
	}
	defer r.lock.Unlock()

	return r.load()
}

// mutate runs fn over the current ledger and writes back its result. A nil
// slice from fn means nothing changed and skips the write.
func (r *FileRepository) mutate(ctx context.Context, fn func([]*Project) ([]*Project, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	locked, err := r.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock ledger: %w", err)
	}
	if !locked {
		return errors.New("lock ledger: not acquired")
	}
	defer r.lock.Unlock()

	all, err := r.load()
	if err != nil {
		return err
	}
	next, err := fn(all)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	return r.store(next)
}

func (r *FileRepository) load() ([]*Project, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []*Project{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(data) == 0 {
		return []*Project{}, nil
	}

	var all []*Project
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", r.path, err)
	}
	for _, p := range all {
		p.normalize()
	}
	return all, nil
}

// store writes to a sibling temp file and renames it over the ledger.
func (r *FileRepository) store(all []*Project) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".projects-*.json")
	if err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
