package ingest

import (
	"context"
	"strings"

	"github.com/webcomponents/catalog/pkg/catalog"
	"github.com/webcomponents/catalog/pkg/tasks"
	"github.com/webcomponents/catalog/pkg/upstream"
)

// UpdateAuthor refreshes a single Author entity's profile metadata,
// the sweeper's per-author counterpart to reconcileLibrary. There is no
// "IngestAuthor" entry point: an Author first appears as a side effect
// of reconcileLibrary resolving a library's owner, so update is the
// only standalone path.
func (r *Reconciler) UpdateAuthor(ctx context.Context, name string) tasks.HandlerResult {
	name = strings.ToLower(name)

	existing, err := r.Store.GetAuthor(ctx, name)
	if err != nil {
		existing = &catalog.Author{Name: name}
	}

	res, err := r.SourceHost.GetUser(ctx, name, existing.Metadata.ETag)
	if err != nil {
		return tasks.Retry(err.Error())
	}

	switch res.Status {
	case upstream.StatusNotFound:
		existing.Status = catalog.StatusError
		existing.Error = catalog.FetchError{Code: catalog.ErrAuthorNotFound, Message: "author not found upstream"}
		if putErr := r.Store.PutAuthor(ctx, existing); putErr != nil {
			return tasks.Fatal(putErr)
		}
		return tasks.Permanent(existing.Error.Code, existing.Error.Message)
	case upstream.StatusForbidden:
		return tasks.Retry("source host quota exceeded")
	case upstream.StatusServerError:
		return tasks.Retry("source host server error")
	case upstream.StatusOk:
		existing.Metadata = catalog.CachedResource{Body: res.Body, ETag: res.ETag}
	}

	existing.Status = catalog.StatusReady
	if err := r.Store.PutAuthor(ctx, existing); err != nil {
		return tasks.Fatal(err)
	}
	return tasks.Continue()
}
