package server

import "net/http"

// IndexHandler serves the front-end entry page at the root path.
func (s *Server) IndexHandler() http.HandlerFunc {
	return ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if err := StreamFile(w, r, "index.html"); err != nil {
			logError("GET", "index.html", err.Error())
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
		}
	}, s.HTMLMiddleWare()...)
}
