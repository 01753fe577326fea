package crm

import (
	"context"
	"regexp"
	"strings"

	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/pkg/hubspot"
)

var stageIDPattern = regexp.MustCompile(`(?i)^[0-9a-z_-]+$`)

// GetTicket returns a single ticket.
func (s *Service) GetTicket(ctx context.Context, ticketID string) (*model.Record, error) {
	if strings.TrimSpace(ticketID) == "" {
		return nil, invalid("Ticket ID is required")
	}
	obj, err := s.client.GetObject(ctx, hubspot.ObjectTickets, ticketID, TicketProperties)
	if err != nil {
		return nil, err
	}
	rec, err := toRecord(obj)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateTicketStage moves a ticket to another pipeline stage.
func (s *Service) UpdateTicketStage(ctx context.Context, ticketID, stage string) (*model.Record, error) {
	if strings.TrimSpace(ticketID) == "" {
		return nil, invalid("Ticket ID is required")
	}
	if stage == "" {
		return nil, invalid("hs_pipeline_stage is required")
	}
	if !stageIDPattern.MatchString(stage) {
		return nil, invalid("hs_pipeline_stage must be an alphanumeric stage identifier")
	}

	obj, err := s.client.UpdateObject(ctx, hubspot.ObjectTickets, ticketID, map[string]string{
		"hs_pipeline_stage": stage,
	})
	if err != nil {
		return nil, err
	}
	rec, err := toRecord(obj)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// AddTicketNote creates a note and associates it with the ticket.
func (s *Service) AddTicketNote(ctx context.Context, ticketID, body string) (string, error) {
	return s.addNote(ctx, hubspot.ObjectTickets, ticketID, body, hubspot.AssociationTypeNoteToTicket)
}
