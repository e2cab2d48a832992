package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type doc struct {
	Name   string         `json:"name"`
	Values map[string]int `json:"values"`
}

func openTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { s.Close() }) //nolint:errcheck // Test cleanup
	return s
}

func TestStores(t *testing.T) {
	stores := map[string]Store{
		"memory": NewMemory(),
		"sqlite": openTestDB(t),
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var got doc
			found, err := s.Load(ctx, KeyScenes, &got)
			if err != nil || found {
				t.Fatalf("Load() on empty store = %v, %v", found, err)
			}

			want := doc{Name: "intro", Values: map[string]int{"dim": 255}}
			if err := s.Save(ctx, KeyScenes, want); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			found, err = s.Load(ctx, KeyScenes, &got)
			if err != nil || !found {
				t.Fatalf("Load() = %v, %v", found, err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Load() = %+v, want %+v", got, want)
			}

			// Save replaces the document
			if err := s.Save(ctx, KeyScenes, doc{Name: "outro"}); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got = doc{}
			if _, err := s.Load(ctx, KeyScenes, &got); err != nil {
				t.Fatal(err)
			}
			if got.Name != "outro" || got.Values != nil {
				t.Errorf("after replace = %+v", got)
			}
		})
	}
}

func TestOpenSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rig.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := s.Save(context.Background(), KeyState, map[string]string{"mode": "band"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file missing: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close() //nolint:errcheck // Test cleanup

	var got map[string]string
	found, err := reopened.Load(context.Background(), KeyState, &got)
	if err != nil || !found || got["mode"] != "band" {
		t.Errorf("reopened Load() = %v, %v, %v", got, found, err)
	}
	if reopened.Path() != path {
		t.Errorf("Path() = %q", reopened.Path())
	}
}

func TestSQLiteClosed(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(context.Background(), KeyState, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("Save() after Close = %v, want ErrClosed", err)
	}
	if err := s.HealthCheck(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("HealthCheck() after Close = %v, want ErrClosed", err)
	}
}

func TestMemoryDecodeError(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.Save(ctx, KeyRehearsal, []int{1, 2}); err != nil {
		t.Fatal(err)
	}
	var dst map[string]int
	found, err := m.Load(ctx, KeyRehearsal, &dst)
	if !found || err == nil {
		t.Errorf("Load() into wrong type = %v, %v; want found with error", found, err)
	}
}
