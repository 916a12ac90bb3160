// Package webhooks provides event-driven webhook delivery for schema registry events.
//
// # Overview
//
// This package manages webhook registration, delivery, retries, and monitoring with
// automatic retry logic, rate limiting, and HMAC signature verification.
//
// # Webhook Events
//
// module.created, module.updated, module.deleted
// version.created, version.deleted
// compilation.started, compilation.complete, compilation.failed
// breaking_change.detected, validation.failed
//
// # Usage Example
//
// Register webhook:
//
//	webhook := &webhooks.Webhook{
//		URL:    "https://api.example.com/webhooks",
//		Events: []webhooks.EventType{webhooks.EventModuleCreated, webhooks.EventVersionCreated},
//		Secret: "webhook-secret",
//	}
//	manager.RegisterWebhook(webhook)
//
// Trigger event:
//
//	event := &webhooks.Event{
//		Type: "module.created",
//		Data: map[string]interface{}{
//			"module_name": "user-service",
//			"created_by":  userID,
//		},
//	}
//	manager.Dispatch(ctx, event)
//
// Verify signature (receiver side):
//
//	sig := r.Header.Get("X-Spoke-Signature")
//	if !webhooks.VerifySignature(body, sig, secret) {
//		return errors.New("invalid signature")
//	}
//
// # Retry Policy
//
// Exponential backoff before each retry: 1s, 2s, 4s, 8s (capped at 5m);
// the retry worker checks for due retries every 30s
// Max attempts: 5 (the first delivery plus up to 4 retries)
// Timeout per attempt: 10s
//
// Each delivery runs in its own goroutine.
//
// # Related Packages
//
//   - pkg/analysis: Publisher and ReplyHandler use WebhookManager and VerifySignature
package webhooks
