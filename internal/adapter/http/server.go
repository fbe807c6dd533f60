package adapthttp

import (
	"net/http"

	"prism/internal/app"
	"prism/internal/domain"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// MessageStream serves a user's realtime notification connection.
type MessageStream interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID int64)
}

// OIDCConfig holds the single sign-on client. Provider is nil when SSO
// is not configured.
type OIDCConfig struct {
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
}

// Enabled reports whether SSO is configured.
func (c *OIDCConfig) Enabled() bool {
	return c != nil && c.Provider != nil
}

// Options carries the adapter settings that do not come from services.
type Options struct {
	AppName           string
	Version           string
	CORSOrigins       []string
	ForwardAuthHeader string
	UploadDir         string
	MaxUploadBytes    int64
	OIDC              *OIDCConfig
}

// Services groups the application services the adapter drives.
type Services struct {
	Auth       *app.AuthService
	Meals      *app.MealService
	Conditions *app.ConditionService
	Messages   *app.MessageService
	Chat       *app.ChatService
	Stream     MessageStream
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	auth       *app.AuthService
	meals      *app.MealService
	conditions *app.ConditionService
	messages   *app.MessageService
	chat       *app.ChatService
	stream     MessageStream

	opts Options
	log  *zap.Logger
}

// New creates a Server wired to the given application services.
func New(svc Services, opts Options, log *zap.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.AppName == "" {
		opts.AppName = "Prism"
	}
	return &Server{
		auth:       svc.Auth,
		meals:      svc.Meals,
		conditions: svc.Conditions,
		messages:   svc.Messages,
		chat:       svc.Chat,
		stream:     svc.Stream,
		opts:       opts,
		log:        log,
	}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
	})

	api := r.PathPrefix("/api").Subrouter()
	api.Use(withNoCache)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/auth/config", s.handleConfig).Methods(http.MethodGet)
	api.HandleFunc("/auth/sso/login", s.handleSSOLogin).Methods(http.MethodGet)
	api.HandleFunc("/auth/sso/callback", s.handleSSOCallback).Methods(http.MethodGet)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)

	authed.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)
	authed.HandleFunc("/auth/me", s.handleUpdateMe).Methods(http.MethodPut)
	authed.HandleFunc("/auth/change-password", s.handleChangePassword).Methods(http.MethodPost)
	authed.HandleFunc("/auth/daily-targets", s.handleDailyTargets).Methods(http.MethodGet)

	authed.HandleFunc("/meals", s.handleMealCreate).Methods(http.MethodPost)
	authed.HandleFunc("/meals", s.handleMealList).Methods(http.MethodGet)
	authed.HandleFunc("/meals/today", s.handleMealToday).Methods(http.MethodGet)
	authed.HandleFunc("/meals/summary", s.handleMealSummary).Methods(http.MethodGet)
	authed.HandleFunc("/meals/sync", s.handleMealSync).Methods(http.MethodPost)
	authed.HandleFunc("/meals/{id:[0-9]+}", s.handleMealGet).Methods(http.MethodGet)
	authed.HandleFunc("/meals/{id:[0-9]+}", s.handleMealUpdate).Methods(http.MethodPut)
	authed.HandleFunc("/meals/{id:[0-9]+}", s.handleMealDelete).Methods(http.MethodDelete)

	authed.HandleFunc("/conditions", s.handleConditionCreate).Methods(http.MethodPost)
	authed.HandleFunc("/conditions", s.handleConditionList("")).Methods(http.MethodGet)
	authed.HandleFunc("/conditions/chronic", s.handleConditionList(domain.ConditionChronic)).Methods(http.MethodGet)
	authed.HandleFunc("/conditions/allergies", s.handleConditionList(domain.ConditionAllergy)).Methods(http.MethodGet)
	authed.HandleFunc("/conditions/{id:[0-9]+}", s.handleConditionGet).Methods(http.MethodGet)
	authed.HandleFunc("/conditions/{id:[0-9]+}", s.handleConditionUpdate).Methods(http.MethodPut)
	authed.HandleFunc("/conditions/{id:[0-9]+}", s.handleConditionDelete).Methods(http.MethodDelete)

	authed.HandleFunc("/messages", s.handleMessageList).Methods(http.MethodGet)
	authed.HandleFunc("/messages/unread-count", s.handleUnreadCount).Methods(http.MethodGet)
	authed.HandleFunc("/messages/read-all", s.handleReadAll).Methods(http.MethodPost)
	authed.HandleFunc("/messages/ws", s.handleMessageStream).Methods(http.MethodGet)
	authed.HandleFunc("/messages/{id:[0-9]+}", s.handleMessageGet).Methods(http.MethodGet)
	authed.HandleFunc("/messages/{id:[0-9]+}", s.handleMessageDelete).Methods(http.MethodDelete)
	authed.HandleFunc("/messages/{id:[0-9]+}/read", s.handleMessageRead).Methods(http.MethodPost)

	authed.HandleFunc("/chat/sessions", s.handleChatSessionCreate).Methods(http.MethodPost)
	authed.HandleFunc("/chat/sessions", s.handleChatSessionList).Methods(http.MethodGet)
	authed.HandleFunc("/chat/sessions/{id:[0-9]+}", s.handleChatSessionGet).Methods(http.MethodGet)
	authed.HandleFunc("/chat/sessions/{id:[0-9]+}", s.handleChatSessionDelete).Methods(http.MethodDelete)
	authed.HandleFunc("/chat/sessions/{id:[0-9]+}/messages", s.handleChatSend).Methods(http.MethodPost)
	authed.HandleFunc("/chat/recognize-food", s.handleRecognizeFood).Methods(http.MethodPost)
	authed.HandleFunc("/chat/recognize-food/upload", s.handleRecognizeUpload).Methods(http.MethodPost)
	authed.HandleFunc("/chat/quick-log", s.handleQuickLog).Methods(http.MethodPost)

	if s.opts.UploadDir != "" {
		r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.opts.UploadDir))))
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(s.loggingMiddleware(r))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"app_name": s.opts.AppName,
		"version":  s.opts.Version,
	})
}
