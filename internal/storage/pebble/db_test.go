package pebblestore

import (
	"context"
	"errors"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Options{DataDir: t.TempDir(), Fsync: FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPutGetDelete(t *testing.T) {
	db := newTestDB(t)
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(v) != "v" {
		t.Fatalf("want v, got %q", v)
	}
	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("k")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDeleteAbsentIsNoop(t *testing.T) {
	db := newTestDB(t)
	if err := db.Delete([]byte("missing")); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}

func TestApplyAtomic(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	err := db.Apply(ctx, []Op{
		PutOp([]byte("a"), []byte("1")),
		PutOp([]byte("b"), []byte("2")),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	for _, k := range []string{"a", "b"} {
		if _, err := db.Get([]byte(k)); err != nil {
			t.Fatalf("get %s: %v", k, err)
		}
	}

	// mixed put+delete in one batch
	err = db.Apply(ctx, []Op{
		DeleteOp([]byte("a")),
		PutOp([]byte("c"), []byte("3")),
	})
	if err != nil {
		t.Fatalf("apply 2: %v", err)
	}
	if _, err := db.Get([]byte("a")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("a should be gone, got %v", err)
	}
	if _, err := db.Get([]byte("c")); err != nil {
		t.Fatalf("c should exist: %v", err)
	}
}

func TestApplyCancelled(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := db.Apply(ctx, []Op{PutOp([]byte("x"), []byte("y"))}); err == nil {
		t.Fatalf("expected error from cancelled context")
	}
	if _, err := db.Get([]byte("x")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("x must not be written, got %v", err)
	}
}

func TestDurableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(Options{DataDir: dir, Fsync: FsyncModeAlways})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db2, err := Open(Options{DataDir: dir, Fsync: FsyncModeAlways})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = db2.Close() })
	v, err := db2.Get([]byte("k"))
	if err != nil || string(v) != "v" {
		t.Fatalf("get after reopen: %q %v", v, err)
	}
}
