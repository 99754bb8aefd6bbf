package delivery

import (
	"context"
	"io"
	"os"
	"time"

	"chat-relay/internal/auth"
	"chat-relay/internal/chat"
	"chat-relay/internal/config"
	"chat-relay/internal/gateway"
	"chat-relay/internal/presence"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

// Pinger is a dependency checked by the health route.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	config   *config.Config
	verifier *auth.Verifier
	gateway  *gateway.Gateway
	chat     *chat.Broadcaster
	presence *presence.Tracker
	checks   map[string]Pinger
	log      logrus.FieldLogger
	app      *fiber.App
}

func NewServer(config *config.Config, verifier *auth.Verifier, gw *gateway.Gateway, broadcaster *chat.Broadcaster, tracker *presence.Tracker, checks map[string]Pinger, log logrus.FieldLogger) *Server {
	s := &Server{
		config:   config,
		verifier: verifier,
		gateway:  gw,
		chat:     broadcaster,
		presence: tracker,
		checks:   checks,
		log:      log.WithField("component", "http"),
	}
	s.app = s.newApp()
	return s
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Chat Relay WebSocket & REST Server",
		DisableStartupMessage: true,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} ${latency}\n",
		Output: accessLogWriter(s.log),
	}))

	corsConfig := cors.Config{
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Requested-With,Access-Control-Request-Method,Access-Control-Request-Headers",
		ExposeHeaders:    "Content-Length,Access-Control-Allow-Origin,Access-Control-Allow-Headers,Content-Type",
		AllowCredentials: s.config.AllowCredentials,
		MaxAge:           86400, // 24 hours
	}

	// Set origins based on environment
	if s.config.IsProduction() {
		corsConfig.AllowOrigins = s.config.GetCORSOrigins()
		s.log.Infof("CORS configured for production with origins: %s", corsConfig.AllowOrigins)
	} else {
		corsConfig.AllowOrigins = "*"
		corsConfig.AllowCredentials = false // Never allow credentials with wildcard origin
		s.log.Info("CORS configured for development with wildcard origin")
	}
	app.Use(cors.New(corsConfig))

	app.Get("/health", s.handleHealth)

	api := app.Group("/api", s.requireIdentity)
	api.Post("/auth/logout", s.handleLogout)
	api.Get("/chats", s.handleUserChats)
	api.Get("/chats/search", s.handleSearchMessages)
	api.Get("/chats/private/:userId/messages", s.handlePrivateHistory)
	api.Get("/chats/group/:groupId/messages", s.handleGroupHistory)
	api.Get("/messages/:messageId", s.handleGetMessage)
	api.Patch("/messages/:messageId", s.handleEditMessage)
	api.Delete("/messages/:messageId", s.handleDeleteMessage)
	api.Post("/messages/:messageId/pin", s.handlePinMessage)
	api.Post("/messages/:messageId/reactions", s.handleAddReaction)
	api.Get("/users/:userId/presence", s.handlePresence)

	groups := api.Group("/groups")
	groups.Post("/", s.handleCreateGroup)
	groups.Get("/", s.handleListGroups)
	groups.Get("/:groupId", s.handleGetGroup)
	groups.Put("/:groupId", s.handleRenameGroup)
	groups.Delete("/:groupId", s.handleDeleteGroup)
	groups.Post("/:groupId/members", s.handleAddMember)
	groups.Delete("/:groupId/members/:memberId", s.handleRemoveMember)
	groups.Post("/:groupId/admins", s.handleAddAdmin)
	groups.Delete("/:groupId/admins/:adminId", s.handleRemoveAdmin)

	s.registerWebSocket(app)
	return app
}

// accessLogWriter routes fiber's access log through logrus when possible.
func accessLogWriter(log logrus.FieldLogger) io.Writer {
	if w, ok := log.(interface{ Writer() *io.PipeWriter }); ok {
		return w.Writer()
	}
	return os.Stdout
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := fiber.StatusOK
	deps := fiber.Map{}
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			s.log.WithError(err).WithField("dependency", name).Warn("Health check failed")
			deps[name] = "down"
			status = fiber.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}

	state := "ok"
	if status != fiber.StatusOK {
		state = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{
		"status":       state,
		"message":      "Chat relay server is running",
		"port":         s.config.Port,
		"environment":  s.config.Environment,
		"relay":        s.config.RelayMode,
		"dependencies": deps,
	})
}

func (s *Server) Start() error {
	s.log.Infof("Chat relay server (WebSocket + REST) starting on port %s", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting connections and waits for open requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
