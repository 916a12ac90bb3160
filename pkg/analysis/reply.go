package analysis

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/webcomponents/catalog/pkg/catalog"
	"github.com/webcomponents/catalog/pkg/httputil"
	"github.com/webcomponents/catalog/pkg/storage"
	"github.com/webcomponents/catalog/pkg/tasks"
	"github.com/webcomponents/catalog/pkg/webhooks"
)

// maxReplyBytes caps the analyzer reply body to protect the datastore
// entity size limit (spec.md §4.7).
const maxReplyBytes = 5 << 20

// replyEnvelope mirrors the pub/sub push-subscription shape the
// analyzer's reply arrives in: {message:{data, attributes}}.
type replyEnvelope struct {
	Message struct {
		Data       json.RawMessage `json:"data"`
		Attributes struct {
			Owner   string `json:"owner"`
			Repo    string `json:"repo"`
			Version string `json:"version"`
			Sha     string `json:"sha,omitempty"`
		} `json:"attributes"`
	} `json:"message"`
}

// analysisError is the shape the analyzer sends when it failed to
// analyze a version instead of returning a result document.
type analysisError struct {
	Error string `json:"error"`
}

// ReplyHandler accepts the analyzer's asynchronous reply (spec.md
// §4.7), shaped exactly like a signed webhook receiver.
type ReplyHandler struct {
	Store  storage.Store
	Queue  tasks.Queue
	Secret string
	Log    *logrus.Entry
}

func (h *ReplyHandler) logger() *logrus.Entry {
	if h.Log != nil {
		return h.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func (h *ReplyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxReplyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequest(w, "reply payload exceeds size limit")
		return
	}

	if h.Secret != "" {
		sig := r.Header.Get("X-Catalog-Signature")
		if sig == "" || !webhooks.VerifySignature(body, sig, h.Secret) {
			httputil.WriteForbidden(w, "invalid analysis reply signature")
			return
		}
	}

	var env replyEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		httputil.WriteBadRequest(w, "malformed analysis reply envelope")
		return
	}

	ctx := r.Context()
	owner, repo, tag := env.Message.Attributes.Owner, env.Message.Attributes.Repo, env.Message.Attributes.Version
	id := catalog.ID(owner, repo)
	log := h.logger().WithFields(logrus.Fields{"library_id": id, "tag": tag})

	if _, err := h.Store.GetContent(ctx, id, tag, catalog.ContentAnalysis); err != nil {
		// Version was deleted while analysis was in flight; drop the
		// reply silently (spec.md §4.7 step 1).
		log.Info("dropping analysis reply for deleted version")
		httputil.WriteSuccessMessage(w, "dropped", nil)
		return
	}

	content := &catalog.Content{LibraryID: id, Tag: tag, Role: catalog.ContentAnalysis}

	var failure analysisError
	if err := json.Unmarshal(env.Message.Data, &failure); err == nil && failure.Error != "" {
		content.Status = catalog.StatusError
		content.Error = catalog.FetchError{Message: failure.Error}
	} else {
		content.Status = catalog.StatusReady
		content.BodyJSON = env.Message.Data
	}

	if err := h.Store.PutContent(ctx, content); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	cache, err := h.Store.GetVersionCache(ctx, id)
	if err == nil && cache.DefaultVersion() == tag {
		if err := h.Queue.Enqueue(ctx, tasks.Task{
			QueueName: "default",
			Path:      fmt.Sprintf("/task/update-indexes/%s/%s", owner, repo),
		}); err != nil {
			httputil.WriteServiceUnavailable(w, "failed to enqueue reindex")
			return
		}
	}

	httputil.WriteSuccessMessage(w, "ok", nil)
}
