package analysis

import (
	"context"
	"fmt"

	"github.com/webcomponents/catalog/pkg/catalog"
	"github.com/webcomponents/catalog/pkg/storage"
	"github.com/webcomponents/catalog/pkg/webhooks"
)

// EventAnalysisRequested is the event type the analyzer callback
// endpoint subscribes to; there is exactly one registered webhook per
// Publisher, so matching is trivial, but the manager's Dispatch/retry
// path is reused as-is.
const EventAnalysisRequested webhooks.EventType = "analysis.requested"

// Publisher creates the pending "analysis" content entity and delivers
// the analysis request to the external analyzer over a signed,
// retried HTTP callback (spec.md §4.7's pub/sub publish side).
type Publisher struct {
	Store storage.Store

	manager   *webhooks.WebhookManager
	webhookID string
}

// NewPublisher registers the analyzer endpoint as a webhook subscriber
// and starts its retry worker. secret may be empty to disable signing
// (local/dev only).
func NewPublisher(ctx context.Context, store storage.Store, endpoint, secret string) (*Publisher, error) {
	manager := webhooks.NewWebhookManager()
	wh := &webhooks.Webhook{
		URL:         endpoint,
		Events:      []webhooks.EventType{EventAnalysisRequested},
		Secret:      secret,
		Description: "analysis bridge callback",
	}
	if err := manager.RegisterWebhook(wh); err != nil {
		return nil, fmt.Errorf("analysis: registering analyzer endpoint: %w", err)
	}
	manager.StartRetryWorker(ctx)

	return &Publisher{Store: store, manager: manager, webhookID: wh.ID}, nil
}

// Close stops the underlying retry worker.
func (p *Publisher) Close() {
	p.manager.StopRetryWorker()
}

// Request records the pending analysis content entity for (owner,
// repo, tag) and dispatches the analysis request with attributes
// {owner, repo, version, sha}.
func (p *Publisher) Request(ctx context.Context, owner, repo, tag, sha string) error {
	id := catalog.ID(owner, repo)

	if err := p.Store.PutContent(ctx, &catalog.Content{
		LibraryID: id,
		Tag:       tag,
		Role:      catalog.ContentAnalysis,
		Status:    catalog.StatusPending,
	}); err != nil {
		return fmt.Errorf("analysis: recording pending content: %w", err)
	}

	event := &webhooks.Event{
		Type: EventAnalysisRequested,
		Data: map[string]interface{}{
			"owner":   owner,
			"repo":    repo,
			"version": tag,
			"sha":     sha,
		},
	}
	return p.manager.Dispatch(ctx, event)
}
