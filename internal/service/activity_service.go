package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/events"
	"github.com/spec-kit/ticket-router/internal/observability"
)

// ActivityService records routing activity from domain events as structured
// logs and metrics. It does not deliver notifications.
type ActivityService struct {
	bus     events.Bus
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewActivityService creates the service.
func NewActivityService(bus events.Bus, logger *zap.Logger, metrics *observability.Metrics) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{bus: bus, logger: logger, metrics: metrics}
}

// RegisterHandlers subscribes to events.
func (a *ActivityService) RegisterHandlers() {
	if a.bus == nil {
		return
	}
	a.bus.Subscribe(events.EventTicketCreated, a.handleTicketCreated)
	a.bus.Subscribe(events.EventTicketAssigned, a.handleTicketAssigned)
	a.bus.Subscribe(events.EventTicketStatusChanged, a.handleTicketStatusChanged)
	a.bus.Subscribe(events.EventBacklogSwept, a.handleBacklogSwept)
	a.bus.Subscribe(events.EventAvailabilityChanged, a.handleAvailabilityChanged)
}

func (a *ActivityService) handleTicketCreated(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketCreatedPayload)
	a.metrics.RecordDispatch(payload.Outcome)
	a.logger.Info("TicketCreated", ticketField(event), zap.String("number", payload.Number), zap.String("dispatch", payload.Outcome))
	return nil
}

func (a *ActivityService) handleTicketAssigned(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketAssignedPayload)
	a.metrics.RecordAssignment(string(payload.Source))
	a.logger.Debug("TicketAssigned", ticketField(event), zap.Int64("engineer_id", payload.EngineerID), zap.String("source", string(payload.Source)))
	return nil
}

func (a *ActivityService) handleTicketStatusChanged(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketStatusChangedPayload)
	a.metrics.RecordStatusChange(string(payload.NewStatus))
	a.logger.Info("TicketStatusChanged", ticketField(event),
		zap.String("from", string(payload.OldStatus)),
		zap.String("to", string(payload.NewStatus)))
	return nil
}

func (a *ActivityService) handleBacklogSwept(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.BacklogSweptPayload)
	a.metrics.RecordSweep(len(payload.TicketIDs), len(payload.Skipped))
	a.logger.Info("BacklogSwept",
		zap.Int64("engineer_id", payload.EngineerID),
		zap.Int64s("ticket_ids", payload.TicketIDs),
		zap.Int("skipped", len(payload.Skipped)))
	return nil
}

func (a *ActivityService) handleAvailabilityChanged(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.AvailabilityChangedPayload)
	a.metrics.RecordAvailability(payload.Available)
	a.logger.Info("AvailabilityChanged",
		zap.Int64("engineer_id", payload.EngineerID),
		zap.Bool("available", payload.Available),
		zap.Int("reassigned", payload.ReassignedCount))
	return nil
}

func ticketField(event events.Event) zap.Field {
	if event.TicketID == nil {
		return zap.Skip()
	}
	return zap.Int64("ticket_id", *event.TicketID)
}
