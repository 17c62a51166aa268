package project

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/seia/seia-translator/internal/db"
)

func newFileRepo(t *testing.T) Repository {
	t.Helper()
	repo, err := NewFileRepository(filepath.Join(t.TempDir(), "projects.json"))
	if err != nil {
		t.Fatalf("NewFileRepository() error = %v", err)
	}
	return repo
}

func newSQLiteRepo(t *testing.T) Repository {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewSQLiteRepository(database.Conn())
}

var repositories = map[string]func(t *testing.T) Repository{
	"json":   newFileRepo,
	"sqlite": newSQLiteRepo,
}

func sampleProject(id string, created time.Time) *Project {
	return &Project{
		ID:                 id,
		Name:               "clip",
		OriginalName:       "clip.mp4",
		VideoPath:          "/data/uploads/" + id + "-clip.mp4",
		CreatedAt:          created,
		UpdatedAt:          created,
		Status:             StatusUploaded,
		SourceLanguage:     "en",
		TargetLanguage:     "fr",
		Segments:           []Segment{},
		TranslatedSegments: []Segment{},
	}
}

func TestRepository_Contract(t *testing.T) {
	for name, newRepo := range repositories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newRepo(t)
			created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

			if err := repo.Insert(ctx, sampleProject("a", created)); err != nil {
				t.Fatalf("Insert() error = %v", err)
			}
			if err := repo.Insert(ctx, sampleProject("b", created.Add(time.Minute))); err != nil {
				t.Fatalf("Insert() error = %v", err)
			}

			got, err := repo.Get(ctx, "a")
			if err != nil || got == nil {
				t.Fatalf("Get() = %v, %v", got, err)
			}
			if got.OriginalName != "clip.mp4" || !got.CreatedAt.Equal(created) {
				t.Errorf("Get() = %+v", got)
			}
			if got.Segments == nil || got.TranslatedSegments == nil {
				t.Error("segment slices should be non-nil after load")
			}

			missing, err := repo.Get(ctx, "nope")
			if err != nil || missing != nil {
				t.Errorf("Get(missing) = %v, %v; want nil, nil", missing, err)
			}

			updated, err := repo.Update(ctx, "a", func(p *Project) error {
				p.Status = StatusTranscribed
				p.Segments = []Segment{{Start: 0, End: 1.5, Text: "Hi"}}
				p.Subtitles = "/data/subtitles/a.srt"
				return nil
			})
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			if updated.Status != StatusTranscribed || len(updated.Segments) != 1 {
				t.Errorf("Update() = %+v", updated)
			}

			reloaded, _ := repo.Get(ctx, "a")
			if reloaded.Segments[0].Text != "Hi" || reloaded.Subtitles != "/data/subtitles/a.srt" {
				t.Errorf("update not persisted: %+v", reloaded)
			}

			boom := errors.New("boom")
			if _, err := repo.Update(ctx, "a", func(p *Project) error {
				p.Name = "changed"
				return boom
			}); !errors.Is(err, boom) {
				t.Errorf("Update(fn error) error = %v, want boom", err)
			}
			if again, _ := repo.Get(ctx, "a"); again.Name != "clip" {
				t.Errorf("failed update leaked: name = %q", again.Name)
			}

			nothing, err := repo.Update(ctx, "nope", func(p *Project) error { return nil })
			if err != nil || nothing != nil {
				t.Errorf("Update(missing) = %v, %v; want nil, nil", nothing, err)
			}

			all, err := repo.List(ctx)
			if err != nil || len(all) != 2 {
				t.Fatalf("List() = %d, %v; want 2", len(all), err)
			}

			removed, err := repo.Delete(ctx, "a")
			if err != nil || removed == nil || removed.ID != "a" {
				t.Fatalf("Delete() = %v, %v", removed, err)
			}
			if removed.Subtitles == "" {
				t.Error("Delete() should return the removed record with its file paths")
			}
			gone, err := repo.Delete(ctx, "a")
			if err != nil || gone != nil {
				t.Errorf("Delete(missing) = %v, %v; want nil, nil", gone, err)
			}

			all, _ = repo.List(ctx)
			if len(all) != 1 || all[0].ID != "b" {
				t.Errorf("List() after delete = %+v", all)
			}
		})
	}
}

func TestFileRepository_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	repo := newFileRepo(t)
	if err := repo.Insert(ctx, sampleProject("a", time.Now())); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := repo.Insert(ctx, sampleProject("b", time.Now())); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		id := "a"
		if i%2 == 1 {
			id = "b"
		}
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, id, func(p *Project) error {
				p.Segments = append(p.Segments, Segment{Start: 0, End: 1, Text: "x"})
				return nil
			})
			if err != nil {
				t.Errorf("Update() error = %v", err)
			}
		}()
	}
	wg.Wait()

	for _, id := range []string{"a", "b"} {
		p, _ := repo.Get(ctx, id)
		if len(p.Segments) != 10 {
			t.Errorf("project %s has %d segments, want 10 (lost update)", id, len(p.Segments))
		}
	}
}

func TestFileRepository_CorruptLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.json")
	repo, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("NewFileRepository() error = %v", err)
	}
	if err := writeFile(path, "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.List(context.Background()); err == nil {
		t.Error("List() should fail on a corrupt ledger")
	}
	if err := repo.Insert(context.Background(), sampleProject("a", time.Now())); err == nil {
		t.Error("Insert() should refuse to overwrite a corrupt ledger")
	}
}

func TestSQLiteRepository_CorruptTimestamp(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	repo := NewSQLiteRepository(database.Conn())
	ctx := context.Background()

	if err := repo.Insert(ctx, sampleProject("a", time.Now())); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, err := database.Conn().Exec(`UPDATE projects SET created_at = 'yesterday' WHERE id = 'a'`); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.Get(ctx, "a"); err == nil {
		t.Error("Get() should fail on an unparseable created_at")
	}
	if _, err := repo.List(ctx); err == nil {
		t.Error("List() should fail on an unparseable created_at")
	}
}
