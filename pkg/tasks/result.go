package tasks

import "fmt"

// Outcome distinguishes the four ways a Handler can finish (§9).
type Outcome int

const (
	// OutcomeContinue means the task body completed; respond 200.
	OutcomeContinue Outcome = iota
	// OutcomePermanent means the task failed in a way that will never
	// succeed on retry; the entity is committed with status=error and
	// the handler still responds 200 so the queue does not retry it.
	OutcomePermanent
	// OutcomeRetry means a transient failure occurred; respond with a
	// 5xx so the queue's backoff schedule retries the task.
	OutcomeRetry
	// OutcomeFatal means an unexpected, unclassified error occurred;
	// treated the same as OutcomeRetry but logged at a higher severity.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContinue:
		return "continue"
	case OutcomePermanent:
		return "permanent"
	case OutcomeRetry:
		return "retry"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// HandlerResult is the sum type every task Handler returns (§9's design
// note). Exactly one of the four Outcomes applies; the accompanying
// fields are only meaningful for that outcome.
type HandlerResult struct {
	Outcome Outcome

	// Code/Message are set for OutcomePermanent: the FetchError persisted
	// on the entity.
	Code    string
	Message string

	// RetryMessage is set for OutcomeRetry: a human-readable reason
	// logged alongside the 5xx response.
	RetryMessage string

	// Cause is set for OutcomeFatal: the underlying unexpected error.
	Cause error
}

// Continue reports a successfully completed task.
func Continue() HandlerResult { return HandlerResult{Outcome: OutcomeContinue} }

// Permanent reports a non-retryable failure, committed as a FetchError.
func Permanent(code, message string) HandlerResult {
	return HandlerResult{Outcome: OutcomePermanent, Code: code, Message: message}
}

// Retry reports a transient failure the queue should retry.
func Retry(message string) HandlerResult {
	return HandlerResult{Outcome: OutcomeRetry, RetryMessage: message}
}

// Fatal reports an unclassified error.
func Fatal(cause error) HandlerResult {
	return HandlerResult{Outcome: OutcomeFatal, Cause: cause}
}

func (r HandlerResult) Error() string {
	switch r.Outcome {
	case OutcomePermanent:
		return fmt.Sprintf("permanent error %s: %s", r.Code, r.Message)
	case OutcomeRetry:
		return fmt.Sprintf("retryable error: %s", r.RetryMessage)
	case OutcomeFatal:
		return fmt.Sprintf("fatal error: %v", r.Cause)
	default:
		return "continue"
	}
}
