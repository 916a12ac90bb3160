package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/webcomponents/catalog/pkg/catalog"
	"github.com/webcomponents/catalog/pkg/httputil"
	"github.com/webcomponents/catalog/pkg/storage"
)

// readAPI exposes the catalog's read surface: library lookups, version
// listings and the sitemap feeds consumed by the public site.
type readAPI struct {
	store storage.Store
}

func (a *readAPI) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/v1/libraries/{owner}/{repo}", a.getLibrary).Methods(http.MethodGet)
	router.HandleFunc("/v1/libraries/{owner}/{repo}/versions", a.listVersions).Methods(http.MethodGet)
	router.HandleFunc("/v1/libraries/{owner}/{repo}/versions/{tag}", a.getVersion).Methods(http.MethodGet)
	router.HandleFunc("/v1/authors/{name}", a.getAuthor).Methods(http.MethodGet)
	router.HandleFunc("/v1/sitemaps/{kind}", a.getSitemap).Methods(http.MethodGet)
}

func (a *readAPI) getLibrary(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := catalog.ID(vars["owner"], vars["repo"])
	lib, err := a.store.GetLibrary(r.Context(), id)
	if err != nil {
		httputil.WriteNotFoundError(w, "library not found")
		return
	}
	httputil.WriteSuccess(w, lib)
}

func (a *readAPI) listVersions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := catalog.ID(vars["owner"], vars["repo"])
	versions, err := a.store.ListVersions(r.Context(), id)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, versions)
}

func (a *readAPI) getVersion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := catalog.ID(vars["owner"], vars["repo"])
	v, err := a.store.GetVersion(r.Context(), id, vars["tag"])
	if err != nil {
		httputil.WriteNotFoundError(w, "version not found")
		return
	}
	httputil.WriteSuccess(w, v)
}

func (a *readAPI) getAuthor(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	author, err := a.store.GetAuthor(r.Context(), name)
	if err != nil {
		httputil.WriteNotFoundError(w, "author not found")
		return
	}
	httputil.WriteSuccess(w, author)
}

func (a *readAPI) getSitemap(w http.ResponseWriter, r *http.Request) {
	kind := catalog.SitemapKind(mux.Vars(r)["kind"])
	switch kind {
	case catalog.SitemapElements, catalog.SitemapCollections, catalog.SitemapAuthors:
	default:
		httputil.WriteBadRequest(w, "unknown sitemap kind")
		return
	}
	sm, err := a.store.GetSitemap(r.Context(), kind)
	if err != nil {
		httputil.WriteNotFoundError(w, "sitemap not found")
		return
	}
	httputil.WriteSuccess(w, sm)
}
