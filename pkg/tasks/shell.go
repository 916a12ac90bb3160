package tasks

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/webcomponents/catalog/pkg/httputil"
)

// Handler executes one task's body and reports how it finished.
type Handler func(ctx context.Context) HandlerResult

// TokenAdmitter validates the single-use XSRF admission token: a
// get-then-delete against the Redis ephemeral store, so a replayed
// request is rejected even if the original was never completed.
type TokenAdmitter interface {
	GetDel(ctx context.Context, key string) (string, error)
}

// Options configures how the Shell admits and wraps a Handler.
type Options struct {
	// Transactional marks a handler whose body must run inside a
	// storage ancestor-entity transaction. Shell itself does not open
	// the transaction (that's the handler's job, since only it knows
	// which entity is the transaction root), and Run does not read this
	// field.
	Transactional bool

	// QueueHeader is the in-process queue admission header name
	// (default "X-Catalog-Queue"). A request carrying it is trusted
	// without a token, matching spec.md §4.4.
	QueueHeader string

	// TokenParam is the query parameter carrying the one-use XSRF
	// token when the request arrives without QueueHeader set.
	TokenParam string
}

// Shell is the uniform entry point for every task route: admit, run,
// translate HandlerResult into an HTTP response.
type Shell struct {
	admitter TokenAdmitter
	log      *logrus.Entry
}

// NewShell builds a Shell backed by the given token admitter (nil
// disables token admission, accepting only the queue header — used in
// tests and for routes with no external callers).
func NewShell(admitter TokenAdmitter, log *logrus.Entry) *Shell {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Shell{admitter: admitter, log: log}
}

func defaultOptions(opts Options) Options {
	if opts.QueueHeader == "" {
		opts.QueueHeader = "X-Catalog-Queue"
	}
	if opts.TokenParam == "" {
		opts.TokenParam = "token"
	}
	return opts
}

// Admit reports whether the request is allowed to run a task: either it
// carries the trusted in-process queue header, or its one-use token
// resolves (and is consumed) against the ephemeral store.
func (s *Shell) Admit(r *http.Request, opts Options) bool {
	opts = defaultOptions(opts)
	if r.Header.Get(opts.QueueHeader) != "" {
		return true
	}
	token := r.URL.Query().Get(opts.TokenParam)
	if token == "" || s.admitter == nil {
		return false
	}
	_, err := s.admitter.GetDel(r.Context(), "xsrf:"+token)
	return err == nil
}

// Run admits the request, executes fn, and writes the HTTP response
// that corresponds to the returned HandlerResult.
func (s *Shell) Run(w http.ResponseWriter, r *http.Request, opts Options, fn Handler) {
	opts = defaultOptions(opts)
	if !s.Admit(r, opts) {
		httputil.WriteForbidden(w, "task admission denied")
		return
	}

	result := fn(r.Context())
	switch result.Outcome {
	case OutcomeContinue:
		httputil.WriteSuccessMessage(w, "ok", nil)
	case OutcomePermanent:
		s.log.WithFields(logrus.Fields{"code": result.Code, "message": result.Message}).
			Warn("task failed permanently")
		httputil.WriteSuccessMessage(w, "committed with error", map[string]string{
			"code": result.Code, "message": result.Message,
		})
	case OutcomeRetry:
		s.log.WithField("reason", result.RetryMessage).Info("task requested retry")
		httputil.WriteServiceUnavailable(w, result.RetryMessage)
	case OutcomeFatal:
		s.log.WithError(result.Cause).Error("task failed fatally")
		httputil.WriteInternalError(w, result.Cause)
	}
}
