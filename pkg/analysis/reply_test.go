package analysis

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/webcomponents/catalog/pkg/catalog"
	"github.com/webcomponents/catalog/pkg/storage"
	"github.com/webcomponents/catalog/pkg/tasks"
)

type inlineQueue struct {
	tasks []tasks.Task
}

func (q *inlineQueue) Enqueue(ctx context.Context, t tasks.Task) error {
	q.tasks = append(q.tasks, t)
	return nil
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore failed: %v", err)
	}
	return store
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestReplyHandler_StoresResultAndReindexesDefaultVersion(t *testing.T) {
	store := newTestStore(t)
	q := &inlineQueue{}
	ctx := context.Background()

	store.PutContent(ctx, &catalog.Content{LibraryID: "acme/widget", Tag: "v1.0.0", Role: catalog.ContentAnalysis, Status: catalog.StatusPending})
	store.PutVersion(ctx, &catalog.Version{LibraryID: "acme/widget", Tag: "v1.0.0", Status: catalog.StatusReady})
	store.RefreshVersionCacheTx(ctx, "acme/widget")

	h := &ReplyHandler{Store: store, Queue: q, Secret: "shh"}

	payload := []byte(`{"message":{"data":{"elements":[{"tagname":"x-foo"}]},"attributes":{"owner":"acme","repo":"widget","version":"v1.0.0"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/analysis/reply", bytes.NewReader(payload))
	req.Header.Set("X-Catalog-Signature", sign(payload, "shh"))
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	content, err := store.GetContent(ctx, "acme/widget", "v1.0.0", catalog.ContentAnalysis)
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if content.Status != catalog.StatusReady {
		t.Errorf("expected ready status, got %s", content.Status)
	}
	if len(content.BodyJSON) == 0 {
		t.Error("expected analysis body to be stored")
	}
	if len(q.tasks) != 1 || q.tasks[0].Path != "/task/update-indexes/acme/widget" {
		t.Errorf("expected reindex task enqueued, got %+v", q.tasks)
	}
}

func TestReplyHandler_DropsReplyForDeletedVersion(t *testing.T) {
	store := newTestStore(t)
	q := &inlineQueue{}
	h := &ReplyHandler{Store: store, Queue: q}

	payload := []byte(`{"message":{"data":{},"attributes":{"owner":"acme","repo":"gone","version":"v1.0.0"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/analysis/reply", bytes.NewReader(payload))
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(q.tasks) != 0 {
		t.Errorf("expected no reindex task for dropped reply, got %+v", q.tasks)
	}
}

func TestReplyHandler_RejectsBadSignature(t *testing.T) {
	store := newTestStore(t)
	q := &inlineQueue{}
	h := &ReplyHandler{Store: store, Queue: q, Secret: "shh"}

	payload := []byte(`{"message":{"data":{},"attributes":{"owner":"acme","repo":"widget","version":"v1.0.0"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/analysis/reply", bytes.NewReader(payload))
	req.Header.Set("X-Catalog-Signature", "sha256=bogus")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestReplyHandler_StoresAnalyzerError(t *testing.T) {
	store := newTestStore(t)
	q := &inlineQueue{}
	ctx := context.Background()
	store.PutContent(ctx, &catalog.Content{LibraryID: "acme/widget", Tag: "v1.0.0", Role: catalog.ContentAnalysis, Status: catalog.StatusPending})

	h := &ReplyHandler{Store: store, Queue: q}
	payload := []byte(`{"message":{"data":{"error":"timed out parsing elements"},"attributes":{"owner":"acme","repo":"widget","version":"v1.0.0"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/analysis/reply", bytes.NewReader(payload))
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	content, err := store.GetContent(ctx, "acme/widget", "v1.0.0", catalog.ContentAnalysis)
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if content.Status != catalog.StatusError {
		t.Errorf("expected error status, got %s", content.Status)
	}
}
