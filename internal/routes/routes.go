package routes

import (
	"net/http"

	"objectscanner/internal/config"
	"objectscanner/internal/handler"
	"objectscanner/internal/logger"
	"objectscanner/internal/middleware"
	"objectscanner/internal/repository"
	"objectscanner/internal/service/analysis"
	"objectscanner/internal/service/capture"
	"objectscanner/internal/service/websocket"

	"github.com/gorilla/mux"
)

// Dependencies are the services the HTTP API is built on.
type Dependencies struct {
	Config        *config.Config
	Logger        *logger.Logger
	Captures      *capture.Service
	Analyses      *analysis.Manager
	Hub           *websocket.HubService
	CaptureRepo   repository.CaptureRepository
	DetectionRepo repository.DetectionRepository
}

// SetupRoutes registers the API endpoints and wraps the router with the
// authentication middleware.
func SetupRoutes(deps Dependencies) http.Handler {
	r := mux.NewRouter()

	// Capture
	r.HandleFunc("/api/capture", handler.CaptureHandler(deps.Captures, deps.Analyses, deps.Logger)).Methods("POST")
	r.HandleFunc("/api/captures", handler.GetCapturesHandler(deps.Logger, deps.CaptureRepo)).Methods("GET")
	r.HandleFunc("/api/captures/{id:[0-9]+}", handler.GetCaptureHandler(deps.Logger, deps.CaptureRepo, deps.DetectionRepo)).Methods("GET")
	r.HandleFunc("/api/captures/{id:[0-9]+}/image", handler.ViewCaptureHandler(deps.Logger, deps.CaptureRepo)).Methods("GET")
	r.HandleFunc("/api/captures/{id:[0-9]+}", handler.DeleteCaptureHandler(deps.Logger, deps.CaptureRepo, deps.DetectionRepo)).Methods("DELETE")

	// Analysis
	r.HandleFunc("/api/analyses", handler.StartAnalysisHandler(deps.Config, deps.Analyses, deps.Logger)).Methods("POST")
	r.HandleFunc("/api/analyses", handler.ListAnalysesHandler(deps.Analyses, deps.Logger)).Methods("GET")
	r.HandleFunc("/api/analyses/{id}", handler.GetAnalysisHandler(deps.Analyses, deps.Logger)).Methods("GET")
	r.HandleFunc("/api/analyses/{id}/retry", handler.RetryAnalysisHandler(deps.Analyses, deps.Logger)).Methods("POST")
	r.HandleFunc("/api/analyses/{id}", handler.AbandonAnalysisHandler(deps.Analyses)).Methods("DELETE")
	r.HandleFunc("/api/view", handler.ViewWebsocketHandler(deps.Hub, deps.Logger)).Methods("GET")

	// Log endpoints
	r.HandleFunc("/logs/{level}", handler.ShowLogsHandler(deps.Config)).Methods("GET")
	r.HandleFunc("/logs/{level}/clear", handler.ClearLogsHandler(deps.Logger)).Methods("POST")

	// Auth endpoints
	r.HandleFunc("/auth/login", handler.LoginHandler(deps.Config, deps.Logger)).Methods("POST")
	r.HandleFunc("/auth/logout", handler.LogoutHandler).Methods("POST")

	return middleware.AuthMiddleware(r)
}
