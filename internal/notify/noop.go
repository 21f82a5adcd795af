package notify

import (
	"context"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
)

// NoOp is a notifier used when no message transport is configured.
// Sends report zero deliveries and never fail.
type NoOp struct{}

func (NoOp) SendAlert(context.Context, *model.Alert) (int, error) { return 0, nil }

func (NoOp) SendTicketNotification(context.Context, *model.Ticket) (int, error) { return 0, nil }
