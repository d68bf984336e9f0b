package email

import (
	"context"
	"fmt"
	"mime"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/google/logger"
	"github.com/wneessen/go-mail"

	"santa/internal/config"
)

// Mailer sends a single email message.
type Mailer interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// NewMailer creates a mailer from config. Provider "ses" uses AWS SES, "smtp"
// a STARTTLS SMTP relay through go-mail; "noop" or unknown only logs.
func NewMailer(cfg config.MailConfig) (Mailer, error) {
	switch cfg.Provider {
	case "ses":
		awsCfg := aws.Config{
			Region: cfg.SESRegion,
			Credentials: aws.NewCredentialsCache(
				credentials.NewStaticCredentialsProvider(cfg.SESAccessKeyID, cfg.SESSecretAccessKey, ""),
			),
		}
		return &sesMailer{
			client: ses.NewFromConfig(awsCfg),
			source: source(cfg),
		}, nil
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("smtp mailer: SMTP_HOST is required")
		}
		opts := []mail.Option{
			mail.WithPort(cfg.SMTPPort),
			mail.WithTLSPolicy(mail.TLSMandatory),
		}
		if cfg.SMTPUsername != "" {
			opts = append(opts,
				mail.WithSMTPAuth(mail.SMTPAuthPlain),
				mail.WithUsername(cfg.SMTPUsername),
				mail.WithPassword(cfg.SMTPPassword),
			)
		}
		client, err := mail.NewClient(cfg.SMTPHost, opts...)
		if err != nil {
			return nil, fmt.Errorf("smtp mailer: %w", err)
		}
		return &smtpMailer{client: client, from: cfg.FromAddress, fromName: cfg.FromName}, nil
	case "noop", "":
		return &noopMailer{}, nil
	default:
		logger.Warningf("Unknown email provider %q, using noop", cfg.Provider)
		return &noopMailer{}, nil
	}
}

func source(cfg config.MailConfig) string {
	if cfg.FromName == "" {
		return cfg.FromAddress
	}
	return mime.QEncoding.Encode("utf-8", cfg.FromName) + " <" + cfg.FromAddress + ">"
}

type sesMailer struct {
	client *ses.Client
	source string
}

func (s *sesMailer) Send(ctx context.Context, to, subject, html, text string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.source),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{},
		},
	}
	if html != "" {
		input.Message.Body.Html = &types.Content{Data: aws.String(html), Charset: aws.String("UTF-8")}
	}
	if text != "" {
		input.Message.Body.Text = &types.Content{Data: aws.String(text), Charset: aws.String("UTF-8")}
	}
	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email via SES: %w", err)
	}
	logger.Infof("Email sent via SES to %s, message id %s", to, aws.ToString(result.MessageId))
	return nil
}

// msgSender is the part of *mail.Client used by smtpMailer.
type msgSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type smtpMailer struct {
	client   msgSender
	from     string
	fromName string
}

func (s *smtpMailer) Send(ctx context.Context, to, subject, html, text string) error {
	msg, err := s.buildMessage(to, subject, html, text)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email via SMTP: %w", err)
	}
	logger.Infof("Email sent via SMTP to %s", to)
	return nil
}

// buildMessage renders a message with a text part and an html alternative.
func (s *smtpMailer) buildMessage(to, subject, html, text string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", s.from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	switch {
	case text != "":
		msg.SetBodyString(mail.TypeTextPlain, text)
		if html != "" {
			msg.AddAlternativeString(mail.TypeTextHTML, html)
		}
	default:
		msg.SetBodyString(mail.TypeTextHTML, html)
	}
	return msg, nil
}

type noopMailer struct{}

func (n *noopMailer) Send(ctx context.Context, to, subject, html, text string) error {
	logger.Infof("Email would be sent (noop) to %s: %s", to, subject)
	return nil
}
