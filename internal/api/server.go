package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"k3rs/backend/internal/inspection"
	"k3rs/backend/internal/metrics"
	"k3rs/backend/internal/report"
	"k3rs/backend/internal/session"
	"k3rs/backend/internal/store"
)

// Store is the data access the handlers need; *store.Store satisfies it.
type Store interface {
	CreateUser(ctx context.Context, name, email, passwordHash, role string) (store.User, error)
	UserByEmail(ctx context.Context, email string) (store.User, error)
	UserByID(ctx context.Context, id int64) (store.User, error)

	CreateInspection(ctx context.Context, rec inspection.Record, createdBy int64) (inspection.Record, error)
	GetInspection(ctx context.Context, id string) (inspection.Record, error)
	ListRecords(ctx context.Context, f store.Filter) ([]inspection.Record, error)
	DeleteInspection(ctx context.Context, id string) ([]string, error)
	AddFinding(ctx context.Context, inspectionID string, f inspection.Finding) (inspection.Finding, error)
	AddPhoto(ctx context.Context, findingID, objectKey, contentType string) error
	Dashboard(ctx context.Context, now time.Time) (store.Dashboard, error)
}

// PhotoStore keeps uploaded photo bytes; *objectstore.Store satisfies it.
type PhotoStore interface {
	PutPhoto(ctx context.Context, findingID string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// Exporter renders report artifacts; *report.Exporter satisfies it.
type Exporter interface {
	Export(ctx context.Context, format report.Format, records []inspection.Record, opts inspection.ReportOptions) (*report.Artifact, error)
}

// Deps wires a Server. Photos, Revoker and Metrics are optional.
type Deps struct {
	Store    Store
	Photos   PhotoStore
	Exporter Exporter
	Revoker  session.Revoker
	Metrics  *metrics.Recorder
	Logger   *zap.Logger

	JWTSecret      string
	TokenTTL       time.Duration
	AllowedOrigins []string
	AdminEmails    []string
	Location       *time.Location
}

type Server struct {
	store    Store
	photos   PhotoStore
	exporter Exporter
	revoker  session.Revoker
	metrics  *metrics.Recorder
	logger   *zap.Logger

	jwtSecret      []byte
	tokenTTL       time.Duration
	allowedOrigins []string
	adminEmails    map[string]struct{}
	location       *time.Location
	loginLimiter   *attemptLimiter
	clock          func() time.Time
}

type authContextKey string

const (
	userIDContextKey   authContextKey = "user_id"
	userRoleContextKey authContextKey = "user_role"
	tokenContextKey    authContextKey = "token"
)

func NewServer(d Deps) *Server {
	s := &Server{
		store:          d.Store,
		photos:         d.Photos,
		exporter:       d.Exporter,
		revoker:        d.Revoker,
		metrics:        d.Metrics,
		logger:         d.Logger,
		jwtSecret:      []byte(d.JWTSecret),
		tokenTTL:       d.TokenTTL,
		allowedOrigins: d.AllowedOrigins,
		adminEmails:    make(map[string]struct{}),
		location:       d.Location,
		loginLimiter:   newAttemptLimiter(10, time.Minute),
		clock:          time.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.revoker == nil {
		s.revoker = session.NewMemoryRevoker()
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = 24 * time.Hour
	}
	for _, e := range d.AdminEmails {
		s.adminEmails[normalizeEmail(e)] = struct{}{}
	}
	return s
}

func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.Handle("GET /api/auth/me", s.authRequired(http.HandlerFunc(s.handleMe)))
	mux.Handle("POST /api/auth/logout", s.authRequired(http.HandlerFunc(s.handleLogout)))

	mux.Handle("GET /api/dashboard", s.authRequired(http.HandlerFunc(s.handleDashboard)))

	mux.Handle("GET /api/inspections", s.authRequired(http.HandlerFunc(s.handleInspections)))
	mux.Handle("POST /api/inspections", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleCreateInspection), roleAdmin, roleInspector)))
	mux.Handle("GET /api/inspections/{id}", s.authRequired(http.HandlerFunc(s.handleInspection)))
	mux.Handle("DELETE /api/inspections/{id}", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleDeleteInspection), roleAdmin)))
	mux.HandleFunc("GET /api/inspections/{id}/findings", s.handleFindings)
	mux.Handle("POST /api/inspections/{id}/findings", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleCreateFinding), roleAdmin, roleInspector)))
	mux.Handle("POST /api/findings/{id}/photos", s.authRequired(s.roleRequired(http.HandlerFunc(s.handleUploadPhoto), roleAdmin, roleInspector)))

	mux.Handle("POST /api/reports/export", s.authRequired(http.HandlerFunc(s.handleExportReport)))

	return s.instrument(s.withCORS(mux))
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept", "Origin"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           600,
	}).Handler(next)
}
