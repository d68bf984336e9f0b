package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/logger"

	"santa/internal/email"
	"santa/internal/models"
)

const assignmentTemplate = "assignment"

// EmailNotifier mails each giver the name of their receiver.
type EmailNotifier struct {
	mailer   email.Mailer
	renderer email.Renderer
}

// NewEmailNotifier returns a Notifier that uses the given Mailer and template renderer.
func NewEmailNotifier(mailer email.Mailer, renderer email.Renderer) *EmailNotifier {
	return &EmailNotifier{mailer: mailer, renderer: renderer}
}

// Notify sends one message per giver. Givers without an address are skipped;
// a failed send does not stop the others.
func (n *EmailNotifier) Notify(ctx context.Context, assignment models.Assignment) error {
	var errs []error
	sent := 0
	for _, pair := range assignment {
		if err := ctx.Err(); err != nil {
			return err
		}
		if pair.Giver.Email == "" {
			logger.Warningf("No email address for %s, skipping", pair.Giver.Identity())
			continue
		}
		subject, htmlBody, textBody, err := n.renderer.Render(assignmentTemplate, pair)
		if err != nil {
			return fmt.Errorf("failed to render %s template: %w", assignmentTemplate, err)
		}
		if err := n.mailer.Send(ctx, pair.Giver.Email, subject, htmlBody, textBody); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", pair.Giver.Email, err))
			continue
		}
		sent++
	}
	logger.Infof("Sent %d of %d assignment emails", sent, len(assignment))
	return errors.Join(errs...)
}
