package transfer

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gatewing-io/gatewing/internal/updateagent/core"
)

// testHAL records install and slot-switch calls.
type testHAL struct {
	core.HAL

	mu        sync.Mutex
	installed []string
	switched  int
}

func (h *testHAL) InstallImage(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.installed = append(h.installed, path)
	return nil
}

func (h *testHAL) SwitchBootSlot() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.switched++
	return nil
}

func testEngine(t *testing.T, hal core.HAL, srv *httptest.Server) *HTTPSEngine {
	t.Helper()
	settings := Settings{SpoolDir: t.TempDir(), ChunkSize: 16}
	e := NewHTTPS(hal, settings, nil)
	// Trust the httptest server's self-signed cert instead of the embedded anchor.
	e.client = srv.Client()
	return e
}

func drive(t *testing.T, sess Session) Status {
	t.Helper()
	for i := 0; i < 10000; i++ {
		switch st := sess.Perform(); st {
		case StatusInProgress:
			continue
		default:
			return st
		}
	}
	t.Fatal("transfer did not settle")
	return StatusError
}

func TestHTTPSTransferSuccess(t *testing.T) {
	image := bytes.Repeat([]byte("firmware"), 100) // 800 bytes, 50 chunks

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(image)))
		_, _ = w.Write(image)
	}))
	defer srv.Close()

	hal := &testHAL{}
	e := testEngine(t, hal, srv)

	sess, err := e.Begin(context.Background(), Config{URL: srv.URL + "/fw.bin"})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if st := drive(t, sess); st != StatusOK {
		t.Fatalf("final status = %v, err = %v", st, sess.Err())
	}
	if !sess.IsComplete() {
		t.Fatalf("IsComplete = false, received %d of %d", sess.Received(), len(image))
	}
	if err := sess.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	if len(hal.installed) != 1 {
		t.Errorf("installed = %v, want one image", hal.installed)
	}
	if hal.switched != 1 {
		t.Errorf("switched = %d, want 1", hal.switched)
	}
	if sess.Received() != int64(len(image)) {
		t.Errorf("received = %d, want %d", sess.Received(), len(image))
	}
}

func TestHTTPSTransferTruncatedBody(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Announce more than is sent.
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write(bytes.Repeat([]byte("x"), 100))
	}))
	defer srv.Close()

	e := testEngine(t, &testHAL{}, srv)

	sess, err := e.Begin(context.Background(), Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer sess.Abort()

	st := drive(t, sess)
	if st == StatusOK && sess.IsComplete() {
		t.Error("truncated transfer reported complete")
	}
}

func TestHTTPSBeginServerError(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := testEngine(t, &testHAL{}, srv)

	if _, err := e.Begin(context.Background(), Config{URL: srv.URL}); err == nil {
		t.Error("expected Begin to fail on HTTP 500")
	}
}

func TestAbortIsIdempotent(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	e := testEngine(t, &testHAL{}, srv)

	sess, err := e.Begin(context.Background(), Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	sess.Abort()
	sess.Abort() // second release must be a no-op

	if st := sess.Perform(); st != StatusError {
		t.Errorf("Perform after Abort = %v, want error", st)
	}
}

func TestRouterDispatch(t *testing.T) {
	r := NewRouter(map[string]Engine{"https": NewHTTPS(&testHAL{}, Settings{SpoolDir: t.TempDir(), ChunkSize: 16}, nil)})

	if _, err := r.Begin(context.Background(), Config{URL: "ftp://host/fw.bin"}); err == nil {
		t.Error("expected error for unregistered scheme")
	}
}

func TestSplitS3URL(t *testing.T) {
	tests := []struct {
		raw     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://firmware/device/v2.bin", "firmware", "device/v2.bin", false},
		{"s3://firmware/", "", "", true},
		{"s3://", "", "", true},
		{"https://firmware/x", "", "", true},
	}

	for _, tt := range tests {
		bucket, key, err := splitS3URL(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("splitS3URL(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if bucket != tt.bucket || key != tt.key {
			t.Errorf("splitS3URL(%q) = (%q, %q), want (%q, %q)", tt.raw, bucket, key, tt.bucket, tt.key)
		}
	}
}

func TestDefaultRootCAs(t *testing.T) {
	// Validates the embedded PEM parses into a non-empty pool.
	pool := DefaultRootCAs()
	if pool == nil {
		t.Fatal("nil pool")
	}
}
