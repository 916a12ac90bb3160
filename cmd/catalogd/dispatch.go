package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/webcomponents/catalog/pkg/analysis"
	"github.com/webcomponents/catalog/pkg/catalog"
	"github.com/webcomponents/catalog/pkg/ingest"
	"github.com/webcomponents/catalog/pkg/search"
	"github.com/webcomponents/catalog/pkg/storage"
	"github.com/webcomponents/catalog/pkg/tasks"
)

// taskRouter maps a task's Path to the handler that runs its body, and
// is shared between the HTTP task routes and the in-process/outbox
// dispatchers so both entry points run exactly the same code.
type taskRouter struct {
	reconciler *ingest.Reconciler
	indexer    *search.Indexer
	publisher  *analysis.Publisher
	store      storage.Store
	log        *logrus.Entry
}

// dispatch runs the handler named by t.Path, returning an error for
// Retry and Fatal outcomes to the queue dispatchers (OutboxPoller/InProcessQueue); HTTP
// callers instead go through tasks.Shell.Run via route().
func (tr *taskRouter) dispatch(ctx context.Context, t tasks.Task) error {
	result := tr.run(ctx, t.Path)
	if result.Outcome == tasks.OutcomeRetry || result.Outcome == tasks.OutcomeFatal {
		return fmt.Errorf("task %s: %s", t.Path, result.Error())
	}
	return nil
}

// run dispatches a single task path to its handler, shared by both the
// HTTP task routes and the background queue dispatchers.
func (tr *taskRouter) run(ctx context.Context, path string) tasks.HandlerResult {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) < 2 || segs[0] != "task" {
		return tasks.Permanent("bad_task_path", "unrecognized task path: "+path)
	}

	switch segs[1] {
	case "ingest":
		switch len(segs) {
		case 4: // /task/ingest/{owner}/{repo}
			return tr.reconciler.Ingest(ctx, segs[2], segs[3])
		case 5: // /task/ingest/{owner}/{repo}/{tag}
			return tr.reconciler.IngestVersion(ctx, segs[2], segs[3], segs[4])
		}
	case "update":
		if len(segs) == 4 {
			return tr.reconciler.Update(ctx, segs[2], segs[3])
		}
	case "update-author":
		if len(segs) == 3 {
			return tr.reconciler.UpdateAuthor(ctx, segs[2])
		}
	case "update-indexes":
		if len(segs) == 4 {
			return tr.indexer.UpdateIndexes(ctx, segs[2], segs[3])
		}
	case "request-analysis":
		if len(segs) == 4 {
			return tr.requestAnalysis(ctx, segs[2], segs[3])
		}
	}
	return tasks.Permanent("bad_task_path", "unrecognized task path: "+path)
}

// requestAnalysis looks up the library's current default version and
// asks the analysis bridge to publish a request for it; there is no
// dedicated upstream package method for this because it reads purely
// from the catalog's own VersionCache, not an upstream API.
func (tr *taskRouter) requestAnalysis(ctx context.Context, owner, repo string) tasks.HandlerResult {
	if tr.publisher == nil {
		return tasks.Continue()
	}
	id := catalog.ID(strings.ToLower(owner), strings.ToLower(repo))
	cache, err := tr.store.GetVersionCache(ctx, id)
	if err != nil {
		return tasks.Fatal(err)
	}
	tag := cache.DefaultVersion()
	if tag == "" {
		return tasks.Continue()
	}
	v, err := tr.store.GetVersion(ctx, id, tag)
	if err != nil {
		return tasks.Fatal(err)
	}
	if err := tr.publisher.Request(ctx, owner, repo, tag, v.Sha); err != nil {
		return tasks.Retry(err.Error())
	}
	return tasks.Continue()
}
