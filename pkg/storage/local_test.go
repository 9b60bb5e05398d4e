package storage

import (
	"context"
	"errors"
	"testing"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	if err := s.Write(ctx, "subs/a.yaml", []byte("payload")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := s.Read(ctx, "subs/a.yaml")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("Read returned %q, want %q", data, "payload")
	}

	exists, err := s.Exists(ctx, "subs/a.yaml")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("Exists returned false for written path")
	}

	paths, err := s.List(ctx, "subs")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("List returned %d paths, want 1", len(paths))
	}

	if err := s.Delete(ctx, "subs/a.yaml"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Read(ctx, "subs/a.yaml"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read after delete returned %v, want ErrNotFound", err)
	}
}

func TestLocalStorageListMissingPrefix(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	paths, err := s.List(context.Background(), "nope")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("List of missing prefix returned %d paths, want 0", len(paths))
	}
}

func TestLocalStorageDeleteMissing(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	if err := s.Delete(context.Background(), "missing.yaml"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete of missing path returned %v, want ErrNotFound", err)
	}
}
