package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET /", s.IndexHandler())

	// OAUTH LOGIN
	s.RegisterRouteFunc("GET "+RouteAuthBegin, s.OAuthBeginHandler())
	s.RegisterRouteFunc("GET "+RouteAuthCallback, s.OAuthCallbackHandler())
	s.RegisterRouteFunc("GET "+RouteAuthLogout, s.LogoutHandler())

	// API routes
	s.RegisterRouteHandler("GET "+RouteAPIMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIGenerate, ChainMiddleware(s.GenerateHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIContentAnalysis, ChainMiddleware(s.ContentAnalysisHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIResearch, ChainMiddleware(s.ResearchHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIImages, ChainMiddleware(s.GenerateImageHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIVideos, ChainMiddleware(s.CreateVideoHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIVideoStatus, ChainMiddleware(s.VideoStatusHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIModels, ChainMiddleware(s.ListModelsHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIModelCache, ChainMiddleware(s.ModelCacheInfoHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteAPIModelCache, ChainMiddleware(s.ClearModelCacheHandler(), s.APIMiddleware()...))

	// Operational routes
	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.Handler())

	// Static front-end
	s.RegisterRouteHandler("GET /{file}", ChainMiddleware(s.serveFileHandler(), s.HTMLMiddleWare()...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.URL.Path, "/")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		err := StreamFile(w, r, filePath)
		if err != nil {
			logError("GET", filePath, err.Error())
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}

func logError(method, path, error string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	errorString := Red + error + ResetColor
	log.Printf("[%-19s] %s %s\n", displayMethod, path, errorString)
}
