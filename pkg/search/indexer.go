package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/webcomponents/catalog/pkg/catalog"
	"github.com/webcomponents/catalog/pkg/storage"
	"github.com/webcomponents/catalog/pkg/tasks"
)

var indexerTracer = otel.Tracer("catalog/search/indexer")

// Indexer maintains the search_documents table backing SearchService.
type Indexer struct {
	DB    *sql.DB
	Store storage.Store
	Queue tasks.Queue
}

// NewIndexer constructs an Indexer.
func NewIndexer(db *sql.DB, store storage.Store, queue tasks.Queue) *Indexer {
	return &Indexer{DB: db, Store: store, Queue: queue}
}

// UpdateIndexes rebuilds the search document for (owner, repo): spec.md
// §4.8's seven-step idempotent build, including the post-write race
// guard that retries if the default version changed mid-build.
func (idx *Indexer) UpdateIndexes(ctx context.Context, owner, repo string) tasks.HandlerResult {
	ctx, span := indexerTracer.Start(ctx, "UpdateIndexes", trace.WithAttributes(
		attribute.String("owner", owner),
		attribute.String("repo", repo),
	))
	defer span.End()

	id := catalog.ID(owner, repo)

	before, err := idx.Store.GetVersionCache(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load version cache")
		return tasks.Fatal(err)
	}
	defaultVersion := before.DefaultVersion()
	if defaultVersion == "" {
		return tasks.Permanent(catalog.ErrLibraryNoVersion, "library has no default version to index")
	}

	doc, err := BuildDocument(ctx, idx.Store, owner, repo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build document")
		return tasks.Retry(err.Error())
	}
	if doc == nil {
		// Shadowed by a registry successor (spec.md §4.8 step 3): nothing
		// to index, and nothing to retry.
		return tasks.Continue()
	}

	if err := idx.upsertDocument(ctx, doc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert document")
		return tasks.Fatal(err)
	}

	after, err := idx.Store.GetVersionCache(ctx, id)
	if err != nil {
		return tasks.Fatal(err)
	}
	if after.DefaultVersion() != defaultVersion {
		return tasks.Retry("default version changed mid-build, retrying")
	}

	if doc.Kind == catalog.KindCollection {
		if err := idx.ensureCollectionMembers(ctx, owner, repo, defaultVersion, doc.Dependencies); err != nil {
			span.RecordError(err)
			return tasks.Retry(err.Error())
		}
	}

	span.SetStatus(codes.Ok, "indexed")
	return tasks.Continue()
}

func (idx *Indexer) upsertDocument(ctx context.Context, doc *Document) error {
	keywords, err := json.Marshal(doc.Keywords)
	if err != nil {
		return fmt.Errorf("search: marshal keywords: %w", err)
	}

	_, err = idx.DB.ExecContext(ctx, `
		INSERT INTO search_documents (
			library_id, owner, github_owner, repo, kind, version,
			github_description, description, keywords, prefix_matches,
			element, behavior, weighted_fields, rank, search_vector
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			setweight(to_tsvector('english', coalesce($4, '') || ' ' || coalesce($13, '')), 'A') ||
			setweight(to_tsvector('english', coalesce($8, '')), 'B') ||
			setweight(to_tsvector('english', array_to_string($10, ' ')), 'C')
		)
		ON CONFLICT (library_id) DO UPDATE SET
			owner = EXCLUDED.owner,
			github_owner = EXCLUDED.github_owner,
			repo = EXCLUDED.repo,
			kind = EXCLUDED.kind,
			version = EXCLUDED.version,
			github_description = EXCLUDED.github_description,
			description = EXCLUDED.description,
			keywords = EXCLUDED.keywords,
			prefix_matches = EXCLUDED.prefix_matches,
			element = EXCLUDED.element,
			behavior = EXCLUDED.behavior,
			weighted_fields = EXCLUDED.weighted_fields,
			rank = EXCLUDED.rank,
			search_vector = EXCLUDED.search_vector
	`,
		doc.LibraryID, doc.Owner, doc.GithubOwner, doc.Repo, string(doc.Kind), doc.Version,
		doc.GithubDescription, doc.Description, string(keywords), pq.Array(doc.PrefixMatches),
		doc.Element, doc.Behavior, doc.WeightedFields, doc.Rank,
	)
	if err != nil {
		return fmt.Errorf("search: upsert document: %w", err)
	}
	return nil
}

// ensureCollectionMembers upserts the inverse CollectionReference edge
// for every manifest dependency and enqueues ingestion for any member
// the catalog doesn't know about yet (spec.md §4.8 step 7).
func (idx *Indexer) ensureCollectionMembers(ctx context.Context, collectionOwner, collectionRepo, version string, dependencies map[string]string) error {
	for _, value := range dependencies {
		memberOwner, memberRepo, rng, ok := parseDependency(value)
		if !ok {
			continue
		}
		memberID := catalog.ID(memberOwner, memberRepo)

		if err := idx.Store.PutCollectionReference(ctx, &catalog.CollectionReference{
			MemberLibraryID:   memberID,
			CollectionScope:   collectionOwner,
			CollectionPackage: collectionRepo,
			CollectionTag:     version,
			Range:             rng,
		}); err != nil {
			return fmt.Errorf("search: recording collection reference for %s: %w", memberID, err)
		}

		if _, err := idx.Store.GetLibrary(ctx, memberID); err != nil {
			if enqueueErr := idx.Queue.Enqueue(ctx, tasks.Task{
				QueueName: "default",
				Path:      fmt.Sprintf("/task/ingest/%s/%s", memberOwner, memberRepo),
			}); enqueueErr != nil {
				return fmt.Errorf("search: enqueueing member ingest for %s: %w", memberID, enqueueErr)
			}
		}
	}
	return nil
}
