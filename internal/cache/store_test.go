package cache

import (
	"log"
	"os"
	"path/filepath"
	"testing"
)

type payload struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

func discardLogger() *log.Logger {
	return log.New(os.NewFile(0, os.DevNull), "", 0)
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir(), discardLogger())

	store.Save(KeyCartSnapshot, payload{ID: 42, Label: "cart"})

	var got payload
	if !store.Load(KeyCartSnapshot, &got) {
		t.Fatal("expected blob to load")
	}
	if got.ID != 42 || got.Label != "cart" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := NewFileStore(t.TempDir(), discardLogger())

	var got payload
	if store.Load(KeyWishlist, &got) {
		t.Fatal("missing slot must read back as absent")
	}
}

func TestFileStoreCorruptBlobReadsAsAbsent(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, discardLogger())

	if err := os.WriteFile(filepath.Join(dir, KeyCartSnapshot+".json"), []byte("{nope"), 0o644); err != nil {
		t.Fatalf("seed corrupt blob: %v", err)
	}

	var got payload
	if store.Load(KeyCartSnapshot, &got) {
		t.Fatal("corrupt blob must read back as absent")
	}
	// The corrupt file is dropped so the next load is a clean miss.
	if _, err := os.Stat(filepath.Join(dir, KeyCartSnapshot+".json")); !os.IsNotExist(err) {
		t.Fatal("corrupt blob should have been removed")
	}
}

func TestFileStoreRemove(t *testing.T) {
	store := NewFileStore(t.TempDir(), discardLogger())

	store.Save(KeyCartSnapshot, payload{ID: 1})
	store.Remove(KeyCartSnapshot)

	var got payload
	if store.Load(KeyCartSnapshot, &got) {
		t.Fatal("removed slot must read back as absent")
	}
	// Removing an absent slot is a no-op.
	store.Remove(KeyCartSnapshot)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()

	store.Save(KeyWishlist, []int64{1, 2, 3})

	var got []int64
	if !store.Load(KeyWishlist, &got) {
		t.Fatal("expected blob to load")
	}
	if len(got) != 3 || got[2] != 3 {
		t.Fatalf("unexpected payload %v", got)
	}

	store.Remove(KeyWishlist)
	if store.Load(KeyWishlist, &got) {
		t.Fatal("removed slot must read back as absent")
	}
}

func TestMemoryStoreCorrupt(t *testing.T) {
	store := NewMemoryStore()
	store.Save(KeyCartSnapshot, payload{ID: 9})
	store.Corrupt(KeyCartSnapshot)

	var got payload
	if store.Load(KeyCartSnapshot, &got) {
		t.Fatal("corrupt slot must read back as absent")
	}
	if store.Contains(KeyCartSnapshot) {
		t.Fatal("corrupt slot should have been dropped")
	}
}
