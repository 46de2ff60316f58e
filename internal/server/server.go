package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shinyyama/ecograd-backend/internal/config"
	"github.com/shinyyama/ecograd-backend/internal/handler"
	appmw "github.com/shinyyama/ecograd-backend/internal/middleware"
	"github.com/shinyyama/ecograd-backend/internal/obs"
	"github.com/shinyyama/ecograd-backend/internal/realtime"
	"github.com/shinyyama/ecograd-backend/internal/repository"
	"github.com/shinyyama/ecograd-backend/internal/security"
	"github.com/shinyyama/ecograd-backend/internal/service"
	"gorm.io/gorm"
)

// Deps are the collaborators the HTTP server is wired from.
type Deps struct {
	DB     *gorm.DB
	Config *config.Config
	Logger *slog.Logger
	// Images may be nil when uploads are disabled.
	Images service.ImageStore
	Hub    *realtime.Hub
	// Publisher defaults to Hub.
	Publisher realtime.Publisher
}

type Server struct {
	e      *echo.Echo
	logger *slog.Logger
}

// AllowOrigin builds the CORS origin check. With no configured origins it
// accepts localhost and Vercel preview deployments.
func AllowOrigin(origins []string) func(string) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowed[strings.ToLower(o)] = struct{}{}
		}
	}
	return func(origin string) bool {
		low := strings.ToLower(origin)
		if len(allowed) > 0 {
			_, wildcard := allowed["*"]
			_, ok := allowed[low]
			return wildcard || ok
		}
		if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
			strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return false
		}
		return strings.HasSuffix(u.Hostname(), "vercel.app")
	}
}

func New(d Deps) *Server {
	cfg := d.Config
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	publisher := d.Publisher
	if publisher == nil && d.Hub != nil {
		publisher = d.Hub
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(obs.RequestID())
	e.Use(obs.RequestLogger(logger))
	allowOrigin := AllowOrigin(cfg.CORSOrigins)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) (bool, error) {
			return allowOrigin(origin), nil
		},
	}))
	e.Use(middleware.BodyLimit(bodyLimit(cfg.MaxImageBytes)))

	tokens := security.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	authMw := appmw.NewAuthMiddleware(tokens)

	userRepo := repository.NewUserRepository(d.DB)
	postRepo := repository.NewPostRepository(d.DB)
	msgRepo := repository.NewMessageRepository(d.DB)
	visitorRepo := repository.NewVisitorRepository(d.DB)
	statsRepo := repository.NewStatsRepository(d.DB)

	authHandler := handler.NewAuthHandler(service.NewAuthService(userRepo, tokens, hasher), logger)
	postHandler := handler.NewPostHandler(service.NewPostService(postRepo, d.Images, cfg.MaxImageBytes), logger)
	msgHandler := handler.NewMessageHandler(service.NewMessageService(msgRepo, userRepo, postRepo, publisher, logger), logger)
	visitorHandler := handler.NewVisitorHandler(service.NewVisitorService(visitorRepo), logger)
	adminHandler := handler.NewAdminHandler(statsRepo, cfg.GitSHA, cfg.BuildAt, logger)

	e.GET("/healthz", adminHandler.Health)
	if d.Hub != nil {
		wsHandler := handler.NewWSHandler(d.Hub, allowOrigin, logger)
		e.GET("/ws", wsHandler.Serve, authMw.WithQueryToken().RequireAuth)
	}

	api := e.Group("/api")
	api.POST("/auth/signup", authHandler.Signup)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/current-user", authHandler.CurrentUser)
	api.GET("/auth/me", authHandler.Me, authMw.RequireAuth)

	api.GET("/posts", postHandler.List)
	api.GET("/posts/:id", postHandler.Get)
	api.GET("/posts/:id/image", postHandler.Image)
	api.POST("/posts", postHandler.Create, authMw.RequireAuth)
	api.PUT("/posts/:id", postHandler.Update, authMw.RequireAuth)
	api.PATCH("/posts/:id/status", postHandler.UpdateStatus, authMw.RequireAuth)
	api.DELETE("/posts/:id", postHandler.Delete, authMw.RequireAuth)
	api.GET("/me/posts", postHandler.ListMine, authMw.RequireAuth)
	api.GET("/me/posts/:id", postHandler.GetMine, authMw.RequireAuth)

	msgs := api.Group("/messages", authMw.RequireAuth)
	msgs.POST("/send", msgHandler.Send)
	msgs.GET("/conversations", msgHandler.Conversations)
	msgs.GET("/thread", msgHandler.Thread)
	msgs.POST("/thread/read", msgHandler.MarkRead)
	msgs.GET("/unread-count", msgHandler.UnreadCount)

	api.POST("/track-visitor", visitorHandler.Track)
	api.GET("/admin/tables", adminHandler.Tables, authMw.RequireAuth)

	return &Server{e: e, logger: logger}
}

// bodyLimit leaves room for multipart framing around the largest image.
func bodyLimit(maxImage int64) string {
	if maxImage <= 0 {
		maxImage = 5 << 20
	}
	mb := maxImage>>20 + 1
	return strconv.FormatInt(mb, 10) + "M"
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
