package handlers

import (
	"net/http"
	"time"

	"responseready/intel"
	"responseready/middleware"
	"responseready/policy"
	"responseready/realtime"
	"responseready/service"
	"responseready/session"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Deps is everything the HTTP surface needs.
type Deps struct {
	Sessions *session.Provider
	Service  *service.Service
	Registry *realtime.Registry
	Analyzer intel.Analyzer
	Speech   intel.Synthesizer
	// Quota caps civilian filings per day; nil disables it.
	Quota          middleware.ReportQuota
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// NewRouter registers every route. Global middleware (CORS, rate limiting)
// is applied by the caller.
func NewRouter(d Deps) *mux.Router {
	authH := NewAuthHandler(d.Sessions, d.Service, d.Logger)
	adminH := NewAdminHandler(d.Service, d.Logger)
	incidentH := NewIncidentHandler(d.Service, d.Logger)
	recordH := NewRecordHandler(d.Service, d.Logger)
	commsH := NewCommsHandler(d.Service, d.Logger)
	intelH := NewIntelHandler(d.Service, d.Analyzer, d.Speech, d.Logger)
	streamH := NewStreamHandler(d.Service, d.Sessions, d.Registry, d.AllowedOrigins, d.Logger)

	authenticated := middleware.AuthMiddleware(d.Sessions)
	identified := middleware.IdentityMiddleware(d.Sessions)
	gate := func(action policy.Action, h http.HandlerFunc) http.Handler {
		return authenticated(middleware.RequireAction(action)(h))
	}

	router := mux.NewRouter()

	// Public routes
	router.HandleFunc("/health", handleHealth(d.Registry)).Methods("GET")
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/signup", authH.Signup).Methods("POST")
	api.HandleFunc("/auth/login", authH.Login).Methods("POST")
	api.HandleFunc("/auth/refresh", authH.RefreshToken).Methods("POST")

	// Session
	api.Handle("/auth/logout", authenticated(http.HandlerFunc(authH.Logout))).Methods("POST")
	api.Handle("/auth/session", authenticated(http.HandlerFunc(authH.Session))).Methods("GET")
	api.Handle("/profile", identified(http.HandlerFunc(authH.CreateProfile))).Methods("POST")

	// Incidents
	report := http.Handler(http.HandlerFunc(incidentH.FileReport))
	if d.Quota != nil {
		report = middleware.ReportLimit(d.Quota, d.Logger)(report)
	}
	api.Handle("/incidents", gate(policy.ViewIncidents, incidentH.GetIncidents)).Methods("GET")
	api.Handle("/incidents", gate(policy.FileIncident, incidentH.CreateIncident)).Methods("POST")
	api.Handle("/incidents/report", authenticated(middleware.RequireAction(policy.FileIncident)(report))).Methods("POST")
	api.Handle("/incidents/mine", gate(policy.ViewOwnReports, incidentH.GetMyReports)).Methods("GET")
	api.Handle("/incidents/export", gate(policy.ExportIncidents, incidentH.ExportIncidents)).Methods("GET")
	api.Handle("/incidents/{id}/status", gate(policy.ChangeIncidentStatus, incidentH.UpdateStatus)).Methods("PUT")

	// Communications
	api.Handle("/comms", gate(policy.ViewComms, commsH.GetComms)).Methods("GET")
	api.Handle("/comms", gate(policy.SendComm, commsH.SendComm)).Methods("POST")

	// Records
	api.Handle("/records/search", gate(policy.ViewRecords, recordH.Search)).Methods("GET")
	api.Handle("/records/civilian", gate(policy.EditRecords, recordH.GetCivilian)).Methods("GET")
	api.Handle("/records/civilian", gate(policy.EditRecords, recordH.UpdateCivilian)).Methods("PUT")
	api.Handle("/records/individuals", gate(policy.EditRecords, recordH.CreateIndividual)).Methods("POST")
	api.Handle("/records/individuals/{id}", gate(policy.EditRecords, recordH.UpdateIndividual)).Methods("PUT")
	api.Handle("/records/vehicles", gate(policy.EditRecords, recordH.CreateVehicle)).Methods("POST")
	api.Handle("/records/vehicles/{id}", gate(policy.EditRecords, recordH.UpdateVehicle)).Methods("PUT")

	// Administration
	api.Handle("/admin/users", gate(policy.ListUsers, adminH.GetUsers)).Methods("GET")
	api.Handle("/admin/units", gate(policy.ViewUnits, adminH.GetUnits)).Methods("GET")
	api.Handle("/admin/users/{id}/role", gate(policy.ChangeRole, adminH.UpdateRole)).Methods("PUT")
	api.Handle("/admin/users/{id}/callsign", gate(policy.ChangeCallSign, adminH.UpdateCallSign)).Methods("PUT")
	api.Handle("/admin/users/{id}/password", gate(policy.ResetPassword, adminH.ResetPassword)).Methods("POST")

	// Radio analysis
	api.Handle("/intel/summarize", gate(policy.AnalyzeComms, intelH.Summarize)).Methods("POST")
	api.Handle("/intel/speech", gate(policy.AnalyzeComms, intelH.Speech)).Methods("POST")

	// Realtime streams authorize before upgrading
	api.Handle("/stream/incidents", authenticated(http.HandlerFunc(streamH.Incidents))).Methods("GET")
	api.Handle("/stream/incidents/mine", authenticated(http.HandlerFunc(streamH.MyReports))).Methods("GET")
	api.Handle("/stream/comms", authenticated(http.HandlerFunc(streamH.Comms))).Methods("GET")

	return router
}

func handleHealth(registry *realtime.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":        "healthy",
			"timestamp":     time.Now().Unix(),
			"version":       Version,
			"subscriptions": registry.Active(),
		})
	}
}
