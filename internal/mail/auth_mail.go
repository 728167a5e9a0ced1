package mail

import (
	"context"
	"fmt"
)

// AuthSender formats the auth-flow messages over a Mailer. The verify base
// URL is the public endpoint the token gets appended to.
type AuthSender struct {
	mailer        *Mailer
	verifyBaseURL string
}

func NewAuthSender(mailer *Mailer, verifyBaseURL string) *AuthSender {
	return &AuthSender{mailer: mailer, verifyBaseURL: verifyBaseURL}
}

func (s *AuthSender) SendVerificationLink(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/%s", s.verifyBaseURL, token)
	body := "Hello,\n\n" +
		"Click the link below to verify your email address:\n\n" +
		link + "\n\n" +
		"This link expires in 24 hours.\n"
	return s.mailer.Send(ctx, to, "Verify your email address", body)
}

func (s *AuthSender) SendPasswordChangedNotice(ctx context.Context, to, username string) error {
	body := "Hello " + username + ",\n\n" +
		"Your password was changed successfully.\n\n" +
		"If you did not make this change, contact support immediately.\n"
	return s.mailer.Send(ctx, to, "Your password was changed", body)
}
