package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/MrEthical07/fleetAuth"
	"github.com/MrEthical07/fleetAuth/middleware"
)

const maxBodyBytes = 64 << 10

// Engine is the subset of *fleetAuth.Engine served over HTTP.
type Engine interface {
	Register(ctx context.Context, req fleetAuth.RegisterRequest) error
	SendVerifyCode(ctx context.Context, email string) error
	CheckVerifyCode(ctx context.Context, email, code string) error
	Login(ctx context.Context, email, password string) (string, error)
	RegisterMachine(ctx context.Context, username, password string) error
	LoginMachine(ctx context.Context, username, password string) (string, error)
	RequestPasswordRecovery(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	UnblockAccount(ctx context.Context, email string) error
	UnlockAccount(ctx context.Context, email string) error
	Authenticate(ctx context.Context, token string) (fleetAuth.Principal, error)
}

// API holds handler dependencies.
type API struct {
	engine     Engine
	logger     *zap.Logger
	adminToken string
	now        func() time.Time
}

// Option configures an API.
type Option func(*API)

// WithAdminToken enables the admin routes, guarded by token.
func WithAdminToken(token string) Option {
	return func(a *API) { a.adminToken = token }
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(logger *zap.Logger) Option {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock sets the clock used to compute Retry-After.
func WithClock(now func() time.Time) Option {
	return func(a *API) {
		if now != nil {
			a.now = now
		}
	}
}

func New(engine Engine, opts ...Option) *API {
	a := &API{
		engine: engine,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the routed handler.
func (a *API) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
	}).Methods(http.MethodGet)

	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/register", a.register).Methods(http.MethodPost)
	auth.HandleFunc("/login", a.login).Methods(http.MethodPost)
	auth.HandleFunc("/api-register", a.registerMachine).Methods(http.MethodPost)
	auth.HandleFunc("/api-login", a.loginMachine).Methods(http.MethodPost)
	auth.HandleFunc("/verify/code/send", a.sendVerifyCode).Methods(http.MethodPost)
	auth.HandleFunc("/verify/code/check", a.checkVerifyCode).Methods(http.MethodPost)
	auth.HandleFunc("/password/recover", a.requestRecovery).Methods(http.MethodPost)
	auth.HandleFunc("/password/reset", a.resetPassword).Methods(http.MethodPost)
	auth.Handle("/me", middleware.Guard(a.engine)(http.HandlerFunc(a.me))).Methods(http.MethodGet)

	if a.adminToken != "" {
		admin := r.PathPrefix("/api/admin").Subrouter()
		admin.Use(a.requireAdmin)
		admin.HandleFunc("/accounts/{email}/unblock", a.unblock).Methods(http.MethodPost)
		admin.HandleFunc("/accounts/{email}/unlock", a.unlock).Methods(http.MethodPost)
	}
	return r
}

type messageResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type registerRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	CompanyName string `json:"companyName"`
	CompanyID   string `json:"companyId"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type principalResponse struct {
	Kind      fleetAuth.PrincipalKind `json:"kind"`
	AccountID string                  `json:"accountId"`
	Email     string                  `json:"email,omitempty"`
	Username  string                  `json:"username"`
	CompanyID string                  `json:"companyId,omitempty"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !a.decode(w, r, &req) {
		return
	}
	err := a.engine.Register(middleware.RequestContext(r), fleetAuth.RegisterRequest{
		Email:       req.Email,
		Username:    req.Username,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CompanyName: req.CompanyName,
		CompanyID:   req.CompanyID,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "account registered, verification code sent"})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !a.decode(w, r, &req) {
		return
	}
	token, err := a.engine.Login(middleware.RequestContext(r), req.Email, req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (a *API) registerMachine(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.engine.RegisterMachine(middleware.RequestContext(r), req.Username, req.Password); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "api account registered"})
}

func (a *API) loginMachine(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !a.decode(w, r, &req) {
		return
	}
	token, err := a.engine.LoginMachine(middleware.RequestContext(r), req.Username, req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (a *API) sendVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.engine.SendVerifyCode(middleware.RequestContext(r), req.Email); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "verification code sent"})
}

func (a *API) checkVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.engine.CheckVerifyCode(middleware.RequestContext(r), req.Email, req.Code); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "email verified"})
}

func (a *API) requestRecovery(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.engine.RequestPasswordRecovery(middleware.RequestContext(r), req.Email); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, messageResponse{Message: "if the account exists, a recovery email was sent"})
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.engine.ResetPassword(middleware.RequestContext(r), req.Token, req.NewPassword); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "password reset"})
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		a.writeError(w, r, fleetAuth.ErrInvalidToken)
		return
	}

	resp := principalResponse{Kind: p.Kind()}
	switch v := p.(type) {
	case fleetAuth.TenantPrincipal:
		resp.AccountID = v.AccountID
		resp.Email = v.Email
		resp.Username = v.Username
		resp.CompanyID = v.CompanyID
	case fleetAuth.MachinePrincipal:
		resp.AccountID = v.AccountID
		resp.Username = v.Username
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) unblock(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.UnblockAccount(middleware.RequestContext(r), mux.Vars(r)["email"]); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "account unblocked"})
}

func (a *API) unlock(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.UnlockAccount(middleware.RequestContext(r), mux.Vars(r)["email"]); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "account unlocked"})
}

func (a *API) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(a.adminToken)) != 1 {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden", Message: "admin token required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// decode reads a JSON body into dst. It writes a 400 and returns false on failure.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		msg := "malformed JSON body"
		if errors.Is(err, io.EOF) {
			msg = "empty body"
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: msg})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
