package sweep

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/webcomponents/catalog/pkg/catalog"
	"github.com/webcomponents/catalog/pkg/storage"
	"github.com/webcomponents/catalog/pkg/tasks"
)

const pageSize = 50

// Sweeper drives the four fleet-wide passes over Store.
type Sweeper struct {
	Store storage.Store
	Queue tasks.Queue

	// DB backs the update-queue depth check; nil disables the check
	// (tests and the in-process queue have no outbox to inspect).
	DB *sql.DB

	Log *logrus.Entry
}

// NewSweeper constructs a Sweeper.
func NewSweeper(store storage.Store, queue tasks.Queue, db *sql.DB, log *logrus.Entry) *Sweeper {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Sweeper{Store: store, Queue: queue, DB: db, Log: log}
}

// ErrQueueBusy is returned when a bulk pass is asked to start while the
// update queue hasn't drained from a previous pass.
var ErrQueueBusy = fmt.Errorf("sweep: update queue is not empty")

func (s *Sweeper) checkQueueEmpty(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	n, err := tasks.CountPending(ctx, s.DB, "update")
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrQueueBusy
	}
	return nil
}

// UpdateAll refuses to start if the update queue is non-empty, then
// pages through all Libraries and Authors, enqueueing one Update task
// per entity (spec.md §4.9).
func (s *Sweeper) UpdateAll(ctx context.Context) error {
	if err := s.checkQueueEmpty(ctx); err != nil {
		return err
	}
	return s.forEachEntity(ctx, func(path string) tasks.Task {
		return tasks.Task{QueueName: "update", Path: path}
	})
}

// AnalyzeAll refuses to start if the update queue is non-empty, then
// pages through all Libraries, enqueueing one analysis-request task per
// library.
func (s *Sweeper) AnalyzeAll(ctx context.Context) error {
	if err := s.checkQueueEmpty(ctx); err != nil {
		return err
	}
	return s.forEachLibrary(ctx, func(owner, repo string) tasks.Task {
		return tasks.Task{QueueName: "update", Path: fmt.Sprintf("/task/request-analysis/%s/%s", owner, repo)}
	})
}

// IndexAll refuses to start if the update queue is non-empty, then pages
// through all Libraries, enqueueing one UpdateIndexes task per library.
func (s *Sweeper) IndexAll(ctx context.Context) error {
	if err := s.checkQueueEmpty(ctx); err != nil {
		return err
	}
	return s.forEachLibrary(ctx, func(owner, repo string) tasks.Task {
		return tasks.Task{QueueName: "update", Path: fmt.Sprintf("/task/update-indexes/%s/%s", owner, repo)}
	})
}

func (s *Sweeper) forEachLibrary(ctx context.Context, taskFor func(owner, repo string) tasks.Task) error {
	offset := 0
	for {
		libs, total, err := s.Store.ListLibraries(ctx, "", pageSize, offset)
		if err != nil {
			return fmt.Errorf("sweep: listing libraries: %w", err)
		}
		for _, lib := range libs {
			t := taskFor(lib.Scope, lib.Package)
			if err := s.Queue.Enqueue(ctx, t); err != nil {
				s.Log.WithError(err).WithField("library", lib.ID()).Warn("sweep: failed to enqueue task")
			}
		}
		offset += len(libs)
		if offset >= int(total) || len(libs) == 0 {
			return nil
		}
	}
}

func (s *Sweeper) forEachEntity(ctx context.Context, taskFor func(path string) tasks.Task) error {
	if err := s.forEachLibrary(ctx, func(owner, repo string) tasks.Task {
		return taskFor(fmt.Sprintf("/task/update/%s/%s", owner, repo))
	}); err != nil {
		return err
	}

	offset := 0
	for {
		authors, total, err := s.Store.ListAuthors(ctx, pageSize, offset)
		if err != nil {
			return fmt.Errorf("sweep: listing authors: %w", err)
		}
		for _, a := range authors {
			t := taskFor(fmt.Sprintf("/task/update-author/%s", a.Name))
			if err := s.Queue.Enqueue(ctx, t); err != nil {
				s.Log.WithError(err).WithField("author", a.Name).Warn("sweep: failed to enqueue task")
			}
		}
		offset += len(authors)
		if offset >= int(total) || len(authors) == 0 {
			return nil
		}
	}
}

// BuildSitemaps emits the three Sitemap entities (elements, collections,
// authors) by scanning ready entities under each predicate.
func (s *Sweeper) BuildSitemaps(ctx context.Context) error {
	if err := s.buildLibrarySitemap(ctx, catalog.KindElement, catalog.SitemapElements); err != nil {
		return err
	}
	if err := s.buildLibrarySitemap(ctx, catalog.KindCollection, catalog.SitemapCollections); err != nil {
		return err
	}
	return s.buildAuthorSitemap(ctx)
}

func (s *Sweeper) buildLibrarySitemap(ctx context.Context, kind catalog.Kind, sitemapKind catalog.SitemapKind) error {
	var ids []string
	offset := 0
	for {
		libs, total, err := s.Store.ListLibraries(ctx, kind, pageSize, offset)
		if err != nil {
			return fmt.Errorf("sweep: listing %s libraries: %w", kind, err)
		}
		for _, lib := range libs {
			if lib.Status == catalog.StatusReady {
				ids = append(ids, lib.ID())
			}
		}
		offset += len(libs)
		if offset >= int(total) || len(libs) == 0 {
			break
		}
	}
	return s.Store.PutSitemap(ctx, &catalog.Sitemap{Kind: sitemapKind, IDs: ids})
}

func (s *Sweeper) buildAuthorSitemap(ctx context.Context) error {
	var ids []string
	offset := 0
	for {
		authors, total, err := s.Store.ListAuthors(ctx, pageSize, offset)
		if err != nil {
			return fmt.Errorf("sweep: listing authors: %w", err)
		}
		for _, a := range authors {
			if a.Status == catalog.StatusReady {
				ids = append(ids, a.Name)
			}
		}
		offset += len(authors)
		if offset >= int(total) || len(authors) == 0 {
			break
		}
	}
	return s.Store.PutSitemap(ctx, &catalog.Sitemap{Kind: catalog.SitemapAuthors, IDs: ids})
}
