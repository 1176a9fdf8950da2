package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/hoppxi/glint/internal/manager"
	"github.com/hoppxi/glint/internal/mutter"
)

type setRequest struct {
	Value  *float64 `json:"value"`
	Smooth bool     `json:"smooth"`
}

type stepRequest struct {
	Up   bool `json:"up"`
	Fine bool `json:"fine"`
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, mutter.ErrUnknownDisplay):
		return fiber.StatusNotFound
	case errors.Is(err, manager.ErrDisabled):
		return fiber.StatusConflict
	case errors.Is(err, manager.ErrNotApplied):
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

func failWith(c *fiber.Ctx, err error) error {
	return c.Status(errorStatus(err)).JSON(fiber.Map{"error": err.Error()})
}

// running resolves the live service or answers 503.
func (s *Server) running(c *fiber.Ctx) (Service, bool) {
	svc, ok := s.service()
	if !ok {
		c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "daemon not started"})
	}
	return svc, ok
}

func (s *Server) listDisplays(c *fiber.Ctx) error {
	svc, ok := s.running(c)
	if !ok {
		return nil
	}
	list := svc.List()
	if list == nil {
		list = []manager.Status{}
	}
	return c.JSON(list)
}

func (s *Server) getBrightness(c *fiber.Ctx) error {
	svc, ok := s.running(c)
	if !ok {
		return nil
	}
	st, err := svc.Status(c.Params("id"))
	if err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"id": st.ID, "brightness": st.Brightness, "percent": st.Percent})
}

func (s *Server) setBrightness(c *fiber.Ctx) error {
	svc, ok := s.running(c)
	if !ok {
		return nil
	}

	var req setRequest
	if err := c.BodyParser(&req); err != nil || req.Value == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	v, err := svc.Set(c.Params("id"), *req.Value, req.Smooth)
	if err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"brightness": v})
}

func (s *Server) step(c *fiber.Ctx) error {
	svc, ok := s.running(c)
	if !ok {
		return nil
	}

	var req stepRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	v, err := svc.Step(c.Params("id"), req.Up, req.Fine)
	if err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"brightness": v})
}

func (s *Server) reset(c *fiber.Ctx) error {
	svc, ok := s.running(c)
	if !ok {
		return nil
	}
	if err := svc.Reset(c.Params("id")); err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"status": "success"})
}
