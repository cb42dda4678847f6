package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"
)

func TestWriteAndReadEntry(t *testing.T) {
	c := newTestCache(t)
	entry := c.Entry(BucketSimple, "pypi", SimpleEntryName("foo"))

	modTime := time.Now().Add(-time.Hour).UTC()
	payload := []byte("payload")
	if _, err := c.WriteEntry(context.Background(), entry, bytes.NewReader(payload), WriteOptions{ModTime: modTime}); err != nil {
		t.Fatalf("write error: %v", err)
	}

	result, err := c.ReadEntry(context.Background(), entry)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	defer result.Reader.Close()

	body, err := io.ReadAll(result.Reader)
	if err != nil {
		t.Fatalf("read cached body error: %v", err)
	}
	if string(body) != string(payload) {
		t.Fatalf("cached payload mismatch: %s", string(body))
	}
	if result.Info.SizeBytes != int64(len(payload)) {
		t.Fatalf("size mismatch: %d", result.Info.SizeBytes)
	}
	if !result.Info.ModTime.Equal(modTime) {
		t.Fatalf("modtime mismatch: expected %v got %v", modTime, result.Info.ModTime)
	}
}

func TestReadEntryMissing(t *testing.T) {
	c := newTestCache(t)
	_, err := c.ReadEntry(context.Background(), c.Entry(BucketSimple, "pypi", "missing"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveEntry(t *testing.T) {
	c := newTestCache(t)
	entry := c.Entry(BucketSimple, "pypi", SimpleEntryName("gone"))
	if _, err := c.WriteEntry(context.Background(), entry, bytes.NewReader([]byte("data")), WriteOptions{}); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if err := c.RemoveEntry(entry); err != nil {
		t.Fatalf("remove error: %v", err)
	}
	if _, err := c.ReadEntry(context.Background(), entry); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after remove, got %v", err)
	}
	if err := c.RemoveEntry(entry); err != nil {
		t.Fatalf("removing a missing entry should succeed: %v", err)
	}
}

func TestReadEntryIgnoresDirectories(t *testing.T) {
	c := newTestCache(t)
	entry := c.Entry(BucketWheels, "pypi", "foo")
	if err := os.MkdirAll(entry.Path(), 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	if _, err := c.ReadEntry(context.Background(), entry); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for directory, got %v", err)
	}
}

func TestWriteEntryHonoursCancellation(t *testing.T) {
	c := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entry := c.Entry(BucketSimple, "pypi", SimpleEntryName("cancelled"))
	if _, err := c.WriteEntry(ctx, entry, bytes.NewReader([]byte("data")), WriteOptions{}); err == nil {
		t.Fatalf("expected cancellation error")
	}
	if _, err := os.Stat(entry.Path()); !os.IsNotExist(err) {
		t.Fatalf("cancelled write must not publish the entry")
	}
}

func TestDistMetadataRoundTrip(t *testing.T) {
	data := MarshalDistMetadata(DistMetadata{Name: "Foo_Bar", Version: "1.2.3"})
	meta, err := UnmarshalDistMetadata(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if meta.Name != "Foo_Bar" || meta.Version != "1.2.3" {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if _, err := UnmarshalDistMetadata([]byte("garbage")); err == nil {
		t.Fatalf("garbage should fail to decode")
	}
	if NormalizePackageName("Foo_Bar..baz") != "foo-bar-baz" {
		t.Fatalf("unexpected normalization %q", NormalizePackageName("Foo_Bar..baz"))
	}
}
