package server

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nhle/taskhub/internal/entity"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/source"
	"github.com/nhle/taskhub/internal/source/httpapi"
)

// activityLister is implemented by backends that can read the log back.
type activityLister interface {
	ListActivity(ctx context.Context, limit int) ([]model.ActivityRecord, error)
}

func (s *Server) routes(api fiber.Router) {
	api.Post("/auth/login", s.login)

	api.Get("/notifications", s.listNotifications)
	api.Post("/notifications", s.createNotification)
	api.Post("/notifications/read-all", s.markAllRead)
	api.Post("/notifications/:id/read", s.markRead)

	api.Get("/users", s.listUsers)
	api.Post("/users", s.createUser)
	api.Put("/users/:id", s.updateUser)
	api.Delete("/users/:id", s.deleteUser)

	api.Get("/projects", s.listProjects)
	api.Post("/projects", s.createProject)
	api.Put("/projects/:id", s.updateProject)
	api.Delete("/projects/:id", s.deleteProject)

	api.Get("/tasks", s.listTasks)
	api.Post("/tasks", s.createTask)
	api.Put("/tasks/:id", s.updateTask)
	api.Delete("/tasks/:id", s.deleteTask)

	api.Get("/activity", s.listActivity)
	api.Post("/activity", s.appendActivity)
}

// handleError maps domain errors to status codes and an ErrorResponse body.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code, kind := fiber.StatusInternalServerError, "internal"

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code, kind = fe.Code, "request"
		if code == fiber.StatusUnauthorized {
			kind = "auth"
		}
	case entity.IsNotFound(err):
		code, kind = fiber.StatusNotFound, "not_found"
	case entity.IsDuplicateKey(err):
		code, kind = fiber.StatusConflict, "duplicate"
	case model.IsValidationError(err):
		code, kind = fiber.StatusBadRequest, "validation"
	case source.IsAuthError(err):
		code, kind = fiber.StatusUnauthorized, "auth"
	}

	if code >= fiber.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.Status(code).JSON(httpapi.ErrorResponse{Error: err.Error(), Kind: kind})
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	return nil
}

// Auth.

func (s *Server) login(c *fiber.Ctx) error {
	var req httpapi.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	u, err := s.backend.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(u.Public())
}

// Notifications.

func (s *Server) listNotifications(c *fiber.Ctx) error {
	ns, err := s.backend.FetchNotifications(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(orEmpty(ns))
}

func (s *Server) createNotification(c *fiber.Ctx) error {
	var n model.Notification
	if err := parseBody(c, &n); err != nil {
		return err
	}
	n.ID = ""
	created, err := s.backend.CreateNotification(c.UserContext(), n)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (s *Server) markRead(c *fiber.Ctx) error {
	if err := s.backend.MarkNotificationRead(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) markAllRead(c *fiber.Ctx) error {
	if err := s.backend.MarkAllNotificationsRead(c.UserContext()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Users.

func (s *Server) listUsers(c *fiber.Ctx) error {
	users, err := s.backend.ListUsers(c.UserContext())
	if err != nil {
		return err
	}
	for i := range users {
		users[i] = users[i].Public()
	}
	return c.JSON(orEmpty(users))
}

func (s *Server) createUser(c *fiber.Ctx) error {
	var req httpapi.CreateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.User.ID = ""
	u, err := s.backend.CreateUser(c.UserContext(), req.User, req.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(u.Public())
}

func (s *Server) updateUser(c *fiber.Ctx) error {
	var u model.User
	if err := parseBody(c, &u); err != nil {
		return err
	}
	u.ID = c.Params("id")
	got, err := s.backend.UpdateUser(c.UserContext(), u)
	if err != nil {
		return err
	}
	return c.JSON(got.Public())
}

func (s *Server) deleteUser(c *fiber.Ctx) error {
	if err := s.backend.DeleteUser(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Projects.

func (s *Server) listProjects(c *fiber.Ctx) error {
	ps, err := s.backend.ListProjects(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(orEmpty(ps))
}

func (s *Server) createProject(c *fiber.Ctx) error {
	var p model.Project
	if err := parseBody(c, &p); err != nil {
		return err
	}
	p.ID = ""
	created, err := s.backend.CreateProject(c.UserContext(), p)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (s *Server) updateProject(c *fiber.Ctx) error {
	var p model.Project
	if err := parseBody(c, &p); err != nil {
		return err
	}
	p.ID = c.Params("id")
	got, err := s.backend.UpdateProject(c.UserContext(), p)
	if err != nil {
		return err
	}
	return c.JSON(got)
}

func (s *Server) deleteProject(c *fiber.Ctx) error {
	if err := s.backend.DeleteProject(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Tasks.

func (s *Server) listTasks(c *fiber.Ctx) error {
	ts, err := s.backend.ListTasks(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(orEmpty(ts))
}

func (s *Server) createTask(c *fiber.Ctx) error {
	var t model.Task
	if err := parseBody(c, &t); err != nil {
		return err
	}
	t.ID = ""
	created, err := s.backend.CreateTask(c.UserContext(), t)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (s *Server) updateTask(c *fiber.Ctx) error {
	var t model.Task
	if err := parseBody(c, &t); err != nil {
		return err
	}
	t.ID = c.Params("id")
	got, err := s.backend.UpdateTask(c.UserContext(), t)
	if err != nil {
		return err
	}
	return c.JSON(got)
}

func (s *Server) deleteTask(c *fiber.Ctx) error {
	if err := s.backend.DeleteTask(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Activity.

func (s *Server) listActivity(c *fiber.Ctx) error {
	lister, ok := s.backend.(activityLister)
	if !ok {
		return fiber.NewError(fiber.StatusNotImplemented, "backend does not keep activity")
	}
	limit, err := strconv.Atoi(c.Query("limit", "0"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be a number")
	}
	recs, err := lister.ListActivity(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(orEmpty(recs))
}

func (s *Server) appendActivity(c *fiber.Ctx) error {
	var rec model.ActivityRecord
	if err := parseBody(c, &rec); err != nil {
		return err
	}
	if err := s.backend.AppendActivity(c.UserContext(), rec); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// orEmpty keeps empty collections encoding as [] rather than null.
func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
