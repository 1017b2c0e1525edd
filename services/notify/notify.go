package notifysvc

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/pmajay/core"
)

// Fanout forwards each notification to every notifier, even when some of them fail.
type Fanout []core.Notifier

var _ core.Notifier = (Fanout)(nil)

func (f Fanout) Notify(ctx context.Context, n core.Notification) error {
	var first error
	for _, nt := range f {
		if err := nt.Notify(ctx, n); err != nil && first == nil {
			first = errors.Wrapf(err, "notifying %s", n.RecipientID)
		}
	}
	return first
}

// MailNotifier emails urgent notifications to recipients with a known address.
type MailNotifier struct {
	mailSvc core.EmailService
}

var _ core.Notifier = (*MailNotifier)(nil)

func NewMailNotifier(mailSvc core.EmailService) *MailNotifier {
	return &MailNotifier{mailSvc: mailSvc}
}

func (m *MailNotifier) Notify(_ context.Context, n core.Notification) error {
	if !n.Urgent || n.RecipientEmail == "" {
		return nil
	}
	m.mailSvc.SendMessages(core.NewNotificationEmail(n))
	return nil
}
