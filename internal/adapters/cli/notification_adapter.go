package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/example/beacon/internal/ports/primary"
)

// NotificationAdapter translates CLI operations to NotificationService calls.
type NotificationAdapter struct {
	service primary.NotificationService
	out     io.Writer
}

// NewNotificationAdapter creates a new NotificationAdapter with the given service.
func NewNotificationAdapter(service primary.NotificationService, out io.Writer) *NotificationAdapter {
	return &NotificationAdapter{
		service: service,
		out:     out,
	}
}

// Broadcast sends text to all recipients, or to subscribed ones only.
func (a *NotificationAdapter) Broadcast(ctx context.Context, text string, subscribedOnly bool) error {
	filter := primary.RecipientFilter{}
	if subscribedOnly {
		subscribed := true
		filter.Subscribed = &subscribed
	}

	report, err := a.service.Broadcast(ctx, text, filter)
	if err != nil {
		return fmt.Errorf("failed to broadcast: %w", err)
	}

	fmt.Fprintf(a.out, "✓ Broadcast delivered: %s\n", formatReport(report))
	return nil
}

// Send delivers text to the recipient with the given display name.
func (a *NotificationAdapter) Send(ctx context.Context, recipientName, text string) error {
	report, err := a.service.SendToOne(ctx, text, recipientName)
	if err != nil {
		return err
	}

	if report.Sent == 0 {
		return fmt.Errorf("delivery to %s failed: %s", recipientName, formatReport(report))
	}
	fmt.Fprintf(a.out, "✓ Message sent to %s\n", recipientName)
	return nil
}

// Recipients lists recipients; subscribed nil lists everyone.
func (a *NotificationAdapter) Recipients(ctx context.Context, subscribed *bool) error {
	recipients, err := a.service.ListRecipients(ctx, primary.RecipientFilter{Subscribed: subscribed})
	if err != nil {
		return fmt.Errorf("failed to list recipients: %w", err)
	}

	if len(recipients) == 0 {
		fmt.Fprintln(a.out, "No recipients found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-10s %-14s %-20s %-5s %s\n", "ID", "HANDLE", "NAME", "SUB", "STATE")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────")
	for _, r := range recipients {
		name := r.Name
		if name == "" {
			name = "-"
		}
		sub := color.New(color.FgHiBlack).Sprint("no ")
		if r.BroadcastSubscribed {
			sub = color.New(color.FgGreen).Sprint("yes")
		}
		fmt.Fprintf(a.out, "%-10s %-14s %-20s %s   %s\n", r.ID, r.Handle, name, sub, r.ConversationState)
	}
	fmt.Fprintln(a.out)

	return nil
}

func formatReport(r *primary.DeliveryReport) string {
	s := fmt.Sprintf("%d sent, %d failed", r.Sent, r.Failed)
	if r.Retired > 0 {
		s += color.New(color.FgYellow).Sprintf(", %d retired", r.Retired)
	}
	return s
}
