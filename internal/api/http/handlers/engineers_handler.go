package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-router/internal/api/dto"
	"github.com/spec-kit/ticket-router/internal/service"
)

// EngineersHandler exposes availability toggles and workload views.
type EngineersHandler struct {
	engineers *service.EngineerService
}

// NewEngineersHandler constructs handler.
func NewEngineersHandler(engineerService *service.EngineerService) *EngineersHandler {
	return &EngineersHandler{engineers: engineerService}
}

// SetOwnAvailability PUT /engineers/me/availability.
func (h *EngineersHandler) SetOwnAvailability(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AvailabilityRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	result, err := h.engineers.SetOwnAvailability(c.UserContext(), user, *req.Available)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAvailabilityResponse(result)})
}

// SetAvailability PUT /engineers/:id/availability.
func (h *EngineersHandler) SetAvailability(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req dto.AvailabilityRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	result, err := h.engineers.SetAvailability(c.UserContext(), user, id, *req.Available)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAvailabilityResponse(result)})
}

// ListAvailable GET /engineers/available.
func (h *EngineersHandler) ListAvailable(c *fiber.Ctx) error {
	rows, err := h.engineers.ListAvailable(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workloadRows(rows)})
}

// Workload GET /engineers/workload.
func (h *EngineersHandler) Workload(c *fiber.Ctx) error {
	rows, err := h.engineers.WorkloadReport(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workloadRows(rows)})
}

func workloadRows(rows []service.EngineerWorkload) []dto.EngineerWorkloadResponse {
	out := make([]dto.EngineerWorkloadResponse, 0, len(rows))
	for i := range rows {
		out = append(out, dto.EngineerWorkloadResponse{
			Engineer: dto.NewUserResponse(&rows[i].Engineer),
			Workload: rows[i].Workload,
		})
	}
	return out
}
