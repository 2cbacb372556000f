package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/service"
	"github.com/harwood-dev/deskgate/internal/panel/store"
	"github.com/harwood-dev/deskgate/pkg/httpx"
	"github.com/harwood-dev/deskgate/pkg/jwtx"
	"github.com/harwood-dev/deskgate/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	issuer       *jwtx.Issuer
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	LoginService     *service.LoginService
	AccountService   *service.AccountService
	TwoFactorService *service.TwoFactorService
	SessionService   *service.SessionService
	SettingsService  *service.SettingsService
	AuditService     *service.AuditService
	MonitorService   *service.MonitorService
	FileService      *service.FileService
	RDPService       *service.RDPService
}

func NewRouter(issuer *jwtx.Issuer, buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerTwoFactor()
	r.registerSessions()
	r.registerSettings()
	r.registerFiles()
	r.registerDashboard()
	r.registerRDP()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// POST /login - strict rate limit by IP (brute force surface)
	loginHandler := &LoginHandler{LoginService: r.LoginService}
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	accountHandler := &AccountHandler{AccountService: r.AccountService}

	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(http.HandlerFunc(accountHandler.HandleMe),
			httpx.AuthnMiddleware(r.issuer),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	// Registration is an admin operation; there is no public signup.
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(accountHandler.HandleRegister),
			httpx.AuthnMiddleware(r.issuer),
			httpx.RequireRole(domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// POST /password - strict limit: each request verifies a password
	r.Mux.Handle("POST /v1/auth/password",
		httpx.Chain(http.HandlerFunc(accountHandler.HandleChangePassword),
			httpx.AuthnMiddleware(r.issuer),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{TwoFactorService: r.TwoFactorService}

	r.Mux.Handle("POST /v1/auth/2fa/setup",
		httpx.Chain(http.HandlerFunc(h.HandleSetup),
			httpx.AuthnMiddleware(r.issuer),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// Enable verifies 6-digit codes; keep it strict to stop code guessing.
	r.Mux.Handle("POST /v1/auth/2fa/enable",
		httpx.Chain(http.HandlerFunc(h.HandleEnable),
			httpx.AuthnMiddleware(r.issuer),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/2fa/disable",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			httpx.AuthnMiddleware(r.issuer),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSessions() {
	h := &SessionsHandler{SessionService: r.SessionService}

	r.Mux.Handle("GET /v1/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.AuthnMiddleware(r.issuer),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("DELETE /v1/sessions/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleTerminate),
			httpx.AuthnMiddleware(r.issuer),
			httpx.RequireRole(domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSettings() {
	h := &SettingsHandler{SettingsService: r.SettingsService}

	r.Mux.Handle("GET /v1/settings",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.AuthnMiddleware(r.issuer),
			httpx.RequireRole(domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("PUT /v1/settings",
		httpx.Chain(http.HandlerFunc(h.HandleUpdate),
			httpx.AuthnMiddleware(r.issuer),
			httpx.RequireRole(domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerFiles() {
	h := &FilesHandler{FileService: r.FileService}

	authed := func(next http.HandlerFunc, cfg httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(next,
			httpx.AuthnMiddleware(r.issuer),
			httpx.RateLimitByUser(cfg),
		)
	}

	r.Mux.Handle("GET /v1/files", authed(h.HandleList, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/files", authed(h.HandleUpload, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/files/download", authed(h.HandleDownload, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/files", authed(h.HandleDelete, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/files/folder", authed(h.HandleCreateFolder, httpx.ModerateLimit))
}

func (r *Router) registerDashboard() {
	h := &DashboardHandler{MonitorService: r.MonitorService}

	r.Mux.Handle("GET /v1/dashboard/stats",
		httpx.Chain(http.HandlerFunc(h.HandleStats),
			httpx.AuthnMiddleware(r.issuer),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("GET /v1/dashboard/metrics",
		httpx.Chain(http.HandlerFunc(h.HandleHistory),
			httpx.AuthnMiddleware(r.issuer),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	// The audit log is operator-only.
	logsHandler := &LogsHandler{AuditService: r.AuditService}
	r.Mux.Handle("GET /v1/logs",
		httpx.Chain(logsHandler,
			httpx.AuthnMiddleware(r.issuer),
			httpx.RequireRole(domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerRDP() {
	h := &RDPHandler{RDPService: r.RDPService}

	authed := func(next http.HandlerFunc, cfg httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(next,
			httpx.AuthnMiddleware(r.issuer),
			httpx.RateLimitByUser(cfg),
		)
	}

	r.Mux.Handle("POST /v1/rdp/connections", authed(h.HandleCreate, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/rdp/connections", authed(h.HandleList, httpx.LenientLimit))
	// Credential release verifies ownership and decrypts; keep it strict.
	r.Mux.Handle("GET /v1/rdp/connections/{id}/credential", authed(h.HandleCredential, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/rdp/connections/{id}/connect", authed(h.HandleConnect, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/rdp/connections/{id}/disconnect", authed(h.HandleDisconnect, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/rdp/connections/{id}", authed(h.HandleDelete, httpx.ModerateLimit))
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
