package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListNamespaces(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"namespaces": s.namespaces.Names()})
}

// handleGetNamespace returns the current listing of one namespace.
func (s *Server) handleGetNamespace(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	entries, ok := s.namespaces.Get(name)
	if !ok {
		writeNotFound(w, "namespace not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "entries": entries, "count": len(entries)})
}

// handleTree dumps the import module's topic tree.
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.importer.Tree(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}
