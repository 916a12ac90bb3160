package search

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/webcomponents/catalog/pkg/httputil"
)

// Handlers exposes SearchService over the read-API edge.
type Handlers struct {
	Service *SearchService
}

// NewHandlers constructs Handlers.
func NewHandlers(service *SearchService) *Handlers {
	return &Handlers{Service: service}
}

// RegisterRoutes wires GET /v1/search onto router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/v1/search", h.search).Methods(http.MethodGet)
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	resp, err := h.Service.Search(r.Context(), Request{
		Query:  q.Get("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, resp)
}
