package analysis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/webcomponents/catalog/pkg/catalog"
	"github.com/webcomponents/catalog/pkg/storage"
)

func TestPublisher_Request(t *testing.T) {
	received := make(chan map[string]interface{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var event struct {
			Data map[string]interface{} `json:"data"`
		}
		json.Unmarshal(body, &event)
		received <- event.Data
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := storage.NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, err := NewPublisher(ctx, store, srv.URL, "test-secret")
	if err != nil {
		t.Fatalf("NewPublisher failed: %v", err)
	}
	defer pub.Close()

	if err := pub.Request(context.Background(), "acme", "widget", "v1.0.0", "deadbeef"); err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	select {
	case data := <-received:
		if data["owner"] != "acme" || data["repo"] != "widget" || data["version"] != "v1.0.0" {
			t.Errorf("unexpected request attributes: %+v", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for analysis request delivery")
	}

	content, err := store.GetContent(context.Background(), "acme/widget", "v1.0.0", catalog.ContentAnalysis)
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if content.Status != catalog.StatusPending {
		t.Errorf("expected pending analysis content, got %s", content.Status)
	}
}
