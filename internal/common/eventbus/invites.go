package eventbus

import (
	"context"
	"fmt"
	"strings"
	"time"

	commonaws "family-assistant/internal/common/aws"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Invite describes one calendar invitation email.
type Invite struct {
	To       []string
	Title    string
	Start    time.Time
	Location string
}

// Inviter emails event invitations to attendees.
type Inviter interface {
	SendInvite(ctx context.Context, invite Invite) error
}

type SESInviter struct {
	client    commonaws.SESAPI
	fromEmail string
	timeout   time.Duration
}

func NewSESInviter(client commonaws.SESAPI, fromEmail string, timeout time.Duration) *SESInviter {
	return &SESInviter{client: client, fromEmail: fromEmail, timeout: timeout}
}

func (s *SESInviter) SendInvite(ctx context.Context, invite Invite) error {
	if len(invite.To) == 0 {
		return nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	subject, body := renderInvite(invite)
	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: invite.To,
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(s.fromEmail),
	})
	if err != nil {
		return fmt.Errorf("%w: invite: %v", ErrNotificationFailed, err)
	}
	return nil
}

func renderInvite(invite Invite) (string, string) {
	subject := "You're invited: " + invite.Title

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", invite.Title)
	fmt.Fprintf(&b, "When: %s\n", invite.Start.Format("Monday, January 2 at 3:04 PM"))
	if invite.Location != "" {
		fmt.Fprintf(&b, "Where: %s\n", invite.Location)
	}
	b.WriteString("\nAdded to the family calendar.")
	return subject, b.String()
}
