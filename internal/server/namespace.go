package server

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	// SessionCookie carries the caller's namespace between upload and query.
	SessionCookie = "insurepal_session"
	// NamespaceHeader lets non-browser clients name their namespace.
	NamespaceHeader = "X-Namespace"
	namespaceField  = "namespace"
)

// requestNamespace returns the namespace named by the request: form field,
// then header, then session cookie. The form must already be parsed.
func requestNamespace(r *http.Request) string {
	if v := strings.TrimSpace(r.FormValue(namespaceField)); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.Header.Get(NamespaceHeader)); v != "" {
		return v
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// resolveNamespace returns the namespace a request operates in. Shared
// isolation, the default, always uses "". Under session isolation a request
// that names no namespace gets a new random one, which for a query is empty.
func (s *Server) resolveNamespace(r *http.Request) string {
	if s.cfg.VectorStore.SharedNamespace() {
		return ""
	}
	if ns := requestNamespace(r); ns != "" {
		return ns
	}
	return uuid.NewString()
}

func (s *Server) setSessionCookie(w http.ResponseWriter, namespace string) {
	if s.cfg.VectorStore.SharedNamespace() {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    namespace,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
