package artifact

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStoreBytesAndResolve(t *testing.T) {
	store := New(t.TempDir(), 0)

	uri, err := store.StoreBytes([]byte("hello"), "wf1", KindAudio)
	if err != nil {
		t.Fatalf("StoreBytes: %v", err)
	}
	if !store.Exists(uri) {
		t.Fatalf("expected artifact to exist")
	}

	path, err := store.Resolve(uri)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.HasSuffix(path, ".wav") {
		t.Errorf("expected .wav extension, got %s", path)
	}

	info, err := store.FileInfo(uri)
	if err != nil {
		t.Fatalf("FileInfo: %v", err)
	}
	if info.Size != 5 {
		t.Errorf("expected size 5, got %d", info.Size)
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	store := New(t.TempDir(), 0)
	uri, err := store.StoreBytes([]byte("x"), "wf2", KindText)
	if err != nil {
		t.Fatalf("StoreBytes: %v", err)
	}

	res := store.Cleanup(uri)
	if !res.Success || res.FreedBytes != 1 {
		t.Fatalf("unexpected first cleanup result: %+v", res)
	}

	res2 := store.Cleanup(uri)
	if !res2.Success || res2.FreedBytes != 0 {
		t.Fatalf("expected idempotent no-op cleanup, got: %+v", res2)
	}

	if store.Exists(uri) {
		t.Fatalf("artifact should no longer exist")
	}
}

func TestResolveRefusesPathEscape(t *testing.T) {
	store := New(t.TempDir(), 0)
	if _, err := store.Resolve("artifact://wf1/../../../etc/passwd"); err == nil {
		t.Fatalf("expected path escape to be rejected")
	}
	if _, err := store.Resolve("not-a-uri"); err != ErrInvalidURI {
		t.Fatalf("expected ErrInvalidURI, got %v", err)
	}
}

func TestStoreFromURLEnforcesSizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 1024))
	}))
	defer srv.Close()

	store := New(t.TempDir(), 10)
	_, _, err := store.StoreFromURL(context.Background(), srv.URL, "wf3", nil)
	if err == nil {
		t.Fatalf("expected size cap to be enforced")
	}
}

func TestStoreFromURLReportsProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	store := New(t.TempDir(), 0)
	var lastDownloaded int64
	uri, written, err := store.StoreFromURL(context.Background(), srv.URL, "wf4", func(downloaded, total int64) {
		lastDownloaded = downloaded
	})
	if err != nil {
		t.Fatalf("StoreFromURL: %v", err)
	}
	if written != 10 {
		t.Errorf("expected 10 bytes written, got %d", written)
	}
	if lastDownloaded != 10 {
		t.Errorf("expected final progress callback at 10, got %d", lastDownloaded)
	}
	if !store.Exists(uri) {
		t.Errorf("expected downloaded artifact to exist")
	}
}

func TestStoreFromURLCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		<-block
	}))
	defer close(block)
	defer srv.Close()

	store := New(t.TempDir(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := store.StoreFromURL(ctx, srv.URL, "wf5", nil)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
}
