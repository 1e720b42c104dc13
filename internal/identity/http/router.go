package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
	"github.com/aussiebroadwan/portalid/internal/identity/obs"
	"github.com/aussiebroadwan/portalid/internal/identity/service"
	"github.com/aussiebroadwan/portalid/internal/identity/store"
	"github.com/aussiebroadwan/portalid/pkg/httpx"
	"github.com/aussiebroadwan/portalid/pkg/jwtx"
	"github.com/aussiebroadwan/portalid/pkg/slogx"

	_ "github.com/aussiebroadwan/portalid/api/identity" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	metrics      *obs.Metrics

	store store.Store

	// RedisPing is optional; when set /readyz reports Redis health.
	RedisPing func(context.Context) error

	RegistrationService  *service.RegistrationService
	RecoveryService      *service.RecoveryService
	AccreditationService *service.AccreditationService
	AdminService         *service.AdminService
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	metrics *obs.Metrics,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		metrics:      metrics,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerRegistration()
	r.registerPassword()
	r.registerAccreditation()
	r.registerIdentities()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title						Portal Identity Service API
//	@version					0.1.0
//	@description				Self-registration, email verification, password recovery and role accreditation for portal identities.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/portalid
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token issued by the portal login service. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// handle registers pattern with per-route middleware, instrumented under
// the pattern itself.
func (r *Router) handle(pattern string, h http.HandlerFunc, mws ...httpx.Middleware) {
	r.Mux.Handle(pattern, r.metrics.Instrument(pattern, httpx.Chain(h, mws...)))
}

// bearer authenticates the caller and, when scopes are given, requires one
// of them. Reviewer-facing routes are limited per subject.
func (r *Router) bearer(scopes ...string) []httpx.Middleware {
	mws := []httpx.Middleware{httpx.AuthnMiddleware(r.verifier)}
	if len(scopes) > 0 {
		mws = append(mws, httpx.RequireAnyScope(scopes...))
	}
	return append(mws, httpx.RateLimitBySubject(httpx.ReviewerLimit))
}

func (r *Router) registerRegistration() {
	h := &RegistrationHandler{RegistrationService: r.RegistrationService}

	// Endpoints that send email share the mail limit; token redemption is
	// limited separately to slow down guessing.
	r.handle("POST /v1/registrations", h.HandleRegister, httpx.RateLimitByIP(httpx.MailLimit))
	r.handle("POST /v1/registrations/resend", h.HandleResend, httpx.RateLimitByIP(httpx.MailLimit))
	r.handle("POST /v1/registrations/verify", h.HandleVerify, httpx.RateLimitByIP(httpx.RedeemLimit))
	r.handle("POST /v1/registrations/complete", h.HandleComplete, httpx.RateLimitByIP(httpx.RedeemLimit))
}

func (r *Router) registerPassword() {
	h := &PasswordHandler{RecoveryService: r.RecoveryService}

	r.handle("POST /v1/password/forgot", h.HandleForgot, httpx.RateLimitByIP(httpx.MailLimit))
	r.handle("POST /v1/password/reset", h.HandleReset, httpx.RateLimitByIP(httpx.RedeemLimit))
}

func (r *Router) registerAccreditation() {
	h := &AccreditationHandler{AccreditationService: r.AccreditationService}

	r.handle("POST /v1/accreditations/apply", h.HandleApply, httpx.RateLimitByIP(httpx.MailLimit))
	r.handle("POST /v1/accreditations", h.HandleSubmit, r.bearer()...)
	r.handle("GET /v1/accreditations/pending", h.HandleListPending,
		r.bearer(domain.ScopeAccreditationReview)...)
	r.handle("GET /v1/accreditations/{id}", h.HandleGet,
		r.bearer(domain.ScopeAccreditationReview)...)
	r.handle("POST /v1/accreditations/{id}/decision", h.HandleDecide,
		r.bearer(domain.ScopeAccreditationReview)...)
}

func (r *Router) registerIdentities() {
	h := &IdentityHandler{AdminService: r.AdminService}

	r.handle("GET /v1/identities/{id}", h.HandleGet,
		r.bearer(domain.ScopeIdentityAdmin, domain.ScopeAccreditationReview)...)
	r.handle("POST /v1/identities/{id}/disable", h.HandleDisable,
		r.bearer(domain.ScopeIdentityAdmin)...)
}

func (r *Router) registerSystem() {
	// Monitoring systems poll these frequently.
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.RedisPing),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	if h := r.metrics.Handler(); h != nil {
		r.Mux.Handle("GET /metrics", h)
	}
}
