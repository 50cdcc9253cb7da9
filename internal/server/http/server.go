// Package http exposes the credential service over a JSON REST API built on fiber.
package http

import (
	"context"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

// Users is the part of services.UserService the HTTP layer depends on.
type Users interface {
	Register(ctx context.Context, email, password, role string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.Token, error)
	ResolveToken(token string) (*auth.Claims, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	CurrentUser(ctx context.Context, claims *auth.Claims) (*models.User, error)
}

type HTTPServer struct {
	address string
	users   Users
	logger  logging.Logger
	app     *fiber.App
}

func NewHTTPServer(a string, l logging.Logger, us Users) *HTTPServer {
	s := &HTTPServer{
		address: a,
		users:   us,
		logger:  l.With("module", "http_server"),
	}
	s.app = s.newApp()
	return s
}

// App returns the underlying fiber application, mainly for tests.
func (s *HTTPServer) App() *fiber.App { return s.app }

func (s *HTTPServer) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "authkeeper",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	app.Use(requestid.New())
	app.Use(s.accessLog)
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/health", s.health)
	app.Post("/register", s.register)
	app.Post("/login", s.login)
	app.Get("/me", s.requireBearer, s.me)
	app.Get("/users/:id", s.requireBearer, requireRole(models.RoleAdmin), s.getUser)

	return app
}

func (s *HTTPServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	return s.app.Listener(listen)
}
