package httpapi

import (
	"net/http"
	"strings"
)

// normalizeBasePath returns "" for the root and "/path" without a trailing
// slash otherwise.
func normalizeBasePath(value string) string {
	path := strings.Trim(strings.TrimSpace(value), "/")
	if path == "" {
		return ""
	}
	return "/" + path
}

// mountBasePath serves handler below prefix. The bare prefix redirects to
// prefix + "/" and everything outside it is not found.
func mountBasePath(prefix string, handler http.Handler) http.Handler {
	if prefix == "" {
		return handler
	}
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	root.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != prefix {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, prefix+"/", http.StatusTemporaryRedirect)
	})
	return root
}
