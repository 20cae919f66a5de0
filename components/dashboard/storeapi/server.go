package storeapi

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/goliatone/go-sheetboard/components/dashboard"
)

// ServerOptions configures the store server.
type ServerOptions struct {
	// APIKey, when set, is required as a bearer token on every request.
	APIKey string
	Logger *zap.Logger
}

// Server exposes a Repository over REST.
type Server struct {
	repo   Repository
	apiKey string
	logger *zap.Logger
}

// NewServer builds the handlers for repo.
func NewServer(repo Repository, opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{repo: repo, apiKey: opts.APIKey, logger: opts.Logger.Named("storeapi")}
}

// NewFiberApp builds a fiber app that renders errors as JSON.
func NewFiberApp() *fiber.App {
	return fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
}

// Setup mounts the dashboard and template routes on r.
func (s *Server) Setup(r fiber.Router) {
	if s.apiKey != "" {
		r.Use(s.requireAPIKey)
	}
	dashboards := r.Group("/dashboards")
	dashboards.Get("/", s.listDashboards)
	dashboards.Post("/", s.createDashboard)
	dashboards.Get("/:id", s.getDashboard)
	dashboards.Put("/:id", s.updateDashboard)
	dashboards.Delete("/:id", s.deleteDashboard)

	templates := r.Group("/templates")
	templates.Get("/", s.listTemplates)
	templates.Post("/", s.createTemplate)
	templates.Get("/:id", s.getTemplate)
	templates.Put("/:id", s.updateTemplate)
}

func (s *Server) requireAPIKey(c *fiber.Ctx) error {
	token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok || token != s.apiKey {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	return c.Next()
}

func (s *Server) listDashboards(c *fiber.Ctx) error {
	items, err := s.repo.ListDashboards(c.UserContext())
	if err != nil {
		return s.fail(c, err)
	}
	if items == nil {
		items = []dashboard.DashboardItem{}
	}
	return c.JSON(items)
}

func (s *Server) getDashboard(c *fiber.Ctx) error {
	item, err := s.repo.GetDashboard(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(item)
}

func (s *Server) createDashboard(c *fiber.Ctx) error {
	var item dashboard.DashboardItem
	if err := c.BodyParser(&item); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := validateBody(item); err != nil {
		return s.fail(c, err)
	}
	created, err := s.repo.CreateDashboard(c.UserContext(), item)
	if err != nil {
		return s.fail(c, err)
	}
	s.logger.Info("dashboard created", zap.String("dashboard_id", created.ID), zap.String("workbook_id", created.WorkbookID))
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (s *Server) updateDashboard(c *fiber.Ctx) error {
	var item dashboard.DashboardItem
	if err := c.BodyParser(&item); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	item.ID = c.Params("id")
	if err := validateBody(item); err != nil {
		return s.fail(c, err)
	}
	updated, err := s.repo.UpdateDashboard(c.UserContext(), item)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(updated)
}

func (s *Server) deleteDashboard(c *fiber.Ctx) error {
	if err := s.repo.DeleteDashboard(c.UserContext(), c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) listTemplates(c *fiber.Ctx) error {
	templates, err := s.repo.ListTemplates(c.UserContext())
	if err != nil {
		return s.fail(c, err)
	}
	if templates == nil {
		templates = []dashboard.Template{}
	}
	return c.JSON(templates)
}

func (s *Server) getTemplate(c *fiber.Ctx) error {
	tpl, err := s.repo.GetTemplate(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(tpl)
}

func (s *Server) createTemplate(c *fiber.Ctx) error {
	var tpl dashboard.Template
	if err := c.BodyParser(&tpl); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := validateBody(tpl); err != nil {
		return s.fail(c, err)
	}
	created, err := s.repo.CreateTemplate(c.UserContext(), tpl)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (s *Server) updateTemplate(c *fiber.Ctx) error {
	var tpl dashboard.Template
	if err := c.BodyParser(&tpl); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	tpl.ID = c.Params("id")
	if err := validateBody(tpl); err != nil {
		return s.fail(c, err)
	}
	updated, err := s.repo.UpdateTemplate(c.UserContext(), tpl)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(updated)
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, ErrValidation):
		code = fiber.StatusBadRequest
	case errors.Is(err, dashboard.ErrDashboardNotFound), errors.Is(err, dashboard.ErrTemplateNotFound):
		code = fiber.StatusNotFound
	default:
		s.logger.Error("store request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
