package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteAuthBegin    = "/auth/{provider}"
	RouteAuthCallback = "/auth/{provider}/callback"
	RouteAuthLogout   = "/auth/logout"

	// API Routes - identity
	RouteAPIMe = "/api/me"

	// API Routes - generation
	RouteAPIGenerate        = "/api/generate"
	RouteAPIContentAnalysis = "/api/content/analysis"
	RouteAPIResearch        = "/api/research"
	RouteAPIImages          = "/api/images/generate"
	RouteAPIVideos          = "/api/videos"
	RouteAPIVideoStatus     = "/api/videos/{id}"

	// API Routes - integrations
	RouteAPIModels      = "/api/integrations/openai/models"
	RouteAPIModelCache  = "/api/integrations/openai/models/cache"

	// Operational Routes
	RouteHealthz = "/healthz"
	RouteMetrics = "/metrics"

	// Front-end pages (static, embedded)
	RouteLoginPage     = "/login.html"
	RouteDashboardPage = "/dashboard.html"
)
