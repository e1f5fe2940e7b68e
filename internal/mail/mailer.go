// Package mail sends repair-request emails over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	gomail "github.com/wneessen/go-mail"

	"storefront/internal/model"
)

const (
	defaultStaffEmail = "admin@sidscollectibles.com"
	defaultPort       = 587
)

// Sender delivers composed messages.
type Sender interface {
	Send(ctx context.Context, msgs ...*gomail.Msg) error
}

type smtpSender struct {
	client *gomail.Client
}

func (s smtpSender) Send(ctx context.Context, msgs ...*gomail.Msg) error {
	return s.client.DialAndSendWithContext(ctx, msgs...)
}

// Options configures a Mailer.
type Options struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string // Defaults to Username
	StaffEmail string // Defaults to Username
	Timeout    time.Duration
	Logger     *slog.Logger

	// Sender replaces SMTP delivery, e.g. in tests.
	Sender Sender
}

// Delivery reports which repair emails went out.
type Delivery struct {
	CustomerSent bool
	StaffSent    bool
}

// Mailer composes and sends repair emails.
type Mailer struct {
	sender Sender
	from   string
	staff  string
	logger *slog.Logger
}

// New builds a Mailer. Port 465 uses implicit TLS; other ports use
// STARTTLS when the server offers it.
func New(opts Options) (*Mailer, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Port == 0 {
		opts.Port = defaultPort
	}
	if opts.From == "" {
		opts.From = opts.Username
	}
	if opts.StaffEmail == "" {
		opts.StaffEmail = opts.Username
	}
	if opts.StaffEmail == "" {
		opts.StaffEmail = defaultStaffEmail
	}
	if opts.From == "" {
		return nil, errors.New("mail: sender address is required")
	}

	sender := opts.Sender
	if sender == nil {
		if opts.Host == "" {
			return nil, errors.New("mail: SMTP host is required")
		}
		clientOpts := []gomail.Option{
			gomail.WithPort(opts.Port),
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(opts.Username),
			gomail.WithPassword(opts.Password),
		}
		if opts.Port == 465 {
			clientOpts = append(clientOpts, gomail.WithSSL())
		} else {
			clientOpts = append(clientOpts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
		}
		if opts.Timeout > 0 {
			clientOpts = append(clientOpts, gomail.WithTimeout(opts.Timeout))
		}
		client, err := gomail.NewClient(opts.Host, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("mail: creating SMTP client: %w", err)
		}
		sender = smtpSender{client: client}
	}

	return &Mailer{
		sender: sender,
		from:   opts.From,
		staff:  opts.StaffEmail,
		logger: opts.Logger,
	}, nil
}

// SendRepairConfirmation emails the customer a copy of their request.
func (m *Mailer) SendRepairConfirmation(ctx context.Context, req *model.RepairRequest, requestID string) error {
	r, err := renderConfirmation(req, requestID)
	if err != nil {
		return fmt.Errorf("rendering confirmation: %w", err)
	}
	return m.send(ctx, req.Email, r)
}

// SendRepairNotification emails staff about a new request.
func (m *Mailer) SendRepairNotification(ctx context.Context, req *model.RepairRequest, requestID string) error {
	r, err := renderNotification(req, requestID)
	if err != nil {
		return fmt.Errorf("rendering notification: %w", err)
	}
	return m.send(ctx, m.staff, r)
}

// SendRepairEmails sends both emails. Each failure is logged and reported
// in the result; neither stops the other.
func (m *Mailer) SendRepairEmails(ctx context.Context, req *model.RepairRequest, requestID string) Delivery {
	var d Delivery

	if err := m.SendRepairConfirmation(ctx, req, requestID); err != nil {
		m.logger.ErrorContext(ctx, "failed to send repair confirmation",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
	} else {
		d.CustomerSent = true
		m.logger.InfoContext(ctx, "repair confirmation sent", slog.String("request_id", requestID))
	}

	if err := m.SendRepairNotification(ctx, req, requestID); err != nil {
		m.logger.ErrorContext(ctx, "failed to send repair notification",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
	} else {
		d.StaffSent = true
		m.logger.InfoContext(ctx, "repair notification sent",
			slog.String("request_id", requestID),
			slog.String("staff_email", m.staff),
		)
	}

	return d
}

func (m *Mailer) send(ctx context.Context, to string, r rendered) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(shopName, m.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(r.Subject)
	msg.SetMessageID()
	msg.SetBodyString(gomail.TypeTextPlain, r.Text)
	msg.AddAlternativeString(gomail.TypeTextHTML, r.HTML)

	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending to %s: %w", to, err)
	}
	return nil
}
