package httpapi

import (
	"net/http"
	"sync"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"eve.evalgo.org/common"
	"eve.evalgo.org/provider"
	"eve.evalgo.org/schema"
	"eve.evalgo.org/security"
	"eve.evalgo.org/txn"
)

// Config controls how a Server binds itself to an echo instance.
type Config struct {
	// NamespaceRequired, when true, rejects requests missing the ns
	// query parameter entirely; when false a missing ns is replaced by
	// DefaultNamespace, which is then validated like any other ns.
	NamespaceRequired bool
	// AdminSigningKey, when non-empty, protects the /admin group with
	// a bearer token validated against this HS256 secret.
	AdminSigningKey string
	// DefaultNamespace is used when ns is omitted and NamespaceRequired
	// is false.
	DefaultNamespace string
}

// DefaultConfig is a permissive, locally-runnable default: ns is
// optional (falling back to "default") but still validated, and
// /admin is unprotected because no AdminSigningKey is set.
func DefaultConfig() Config {
	return Config{
		NamespaceRequired: false,
		DefaultNamespace:  "default",
	}
}

// Server wires a provider.Provider to an echo.Echo.
type Server struct {
	Provider *provider.Provider
	Config   Config
	logger   *common.ContextLogger
	jwt      *security.JWTService

	txnMu sync.Mutex
	txns  map[string]*txn.Buffer
}

// NewServer constructs a Server ready to have RegisterRoutes called.
func NewServer(p *provider.Provider, cfg Config) *Server {
	s := &Server{
		Provider: p,
		Config:   cfg,
		logger:   common.ServiceLogger("httpapi", "v1"),
		txns:     make(map[string]*txn.Buffer),
	}
	if cfg.AdminSigningKey != "" {
		s.jwt = security.NewJWTService(cfg.AdminSigningKey)
	}
	return s
}

// RegisterRoutes mounts every public and admin route onto e.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.namespaceMiddleware)

	v1 := e.Group("/v1")
	s.registerEntityRoutes(v1)
	s.registerSearchRoutes(v1)
	s.registerRelationRoutes(v1)
	s.registerEventRoutes(v1)
	s.registerActionRoutes(v1)
	s.registerArtifactRoutes(v1)
	s.registerBatchRoutes(v1)
	s.registerTransactionRoutes(v1)

	admin := e.Group("/admin")
	if s.jwt != nil {
		admin.Use(echojwt.WithConfig(echojwt.Config{
			SigningKey:  []byte(s.Config.AdminSigningKey),
			TokenLookup: "header:Authorization:Bearer ",
		}))
	}
	s.registerAdminRoutes(admin)
}

// Start blocks serving on address.
func (s *Server) Start(address string) error {
	e := echo.New()
	e.HideBanner = true
	s.RegisterRoutes(e)
	s.logger.WithField("address", address).Info("starting httpapi server")
	return e.Start(address)
}

// namespaceMiddleware resolves and validates the ns query parameter,
// storing the resolved value under "ns" in the echo context for
// handlers to read via c.Get("ns").
func (s *Server) namespaceMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ns := c.QueryParam("ns")
		if ns == "" {
			if s.Config.NamespaceRequired {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_NAMESPACE"})
			}
			ns = s.Config.DefaultNamespace
		}
		if err := schema.ValidateNamespaceID(ns); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_NAMESPACE"})
		}
		c.Set("ns", ns)
		return next(c)
	}
}
