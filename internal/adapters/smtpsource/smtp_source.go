package smtpsource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/mail-triage/internal/core"
	"go.uber.org/zap"
)

// SMTPSource accepts inbound messages over SMTP and hands them to the
// triage service as API-style submissions. The Message-ID header becomes
// the external id when present; otherwise ingestion assigns a synthetic
// one.
type SMTPSource struct {
	service    *core.TriageService
	logger     *zap.Logger
	listenAddr string
	server     *smtp.Server
}

// NewSMTPSource creates a new inbound SMTP source.
func NewSMTPSource(service *core.TriageService, listenAddr string, logger *zap.Logger) *SMTPSource {
	return &SMTPSource{
		service:    service,
		logger:     logger,
		listenAddr: listenAddr,
	}
}

// Start launches the SMTP server.
func (s *SMTPSource) Start() error {
	s.server = smtp.NewServer(&smtpBackend{source: s})

	s.server.Addr = s.listenAddr
	s.server.Domain = "localhost"
	s.server.ReadTimeout = 30 * time.Second
	s.server.WriteTimeout = 30 * time.Second
	s.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	s.server.MaxRecipients = 50
	s.server.AllowInsecureAuth = true

	s.logger.Info("SMTP source starting", zap.String("address", s.listenAddr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				s.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop shuts the SMTP server down.
func (s *SMTPSource) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	source *SMTPSource
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{source: b.source}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	source     *SMTPSource
	sender     string
	recipients []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// AuthPlain handles PLAIN authentication (not needed for ingestion)
func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data parses the message and hands it to ingestion. Only validation
// failures reject the delivery; downstream processing errors are absorbed
// by the pipeline.
func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.source.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	parsed, err := mail.ReadMessage(bytes.NewReader(rawData))
	if err != nil {
		s.source.logger.Error("Failed to parse message", zap.Error(err))
		return fmt.Errorf("550 Malformed message")
	}

	body, err := io.ReadAll(parsed.Body)
	if err != nil {
		s.source.logger.Error("Failed to read message body", zap.Error(err))
		return err
	}

	msg := &core.Message{
		ExternalID: strings.Trim(parsed.Header.Get("Message-ID"), "<>"),
		Subject:    parsed.Header.Get("Subject"),
		Body:       string(body),
		Sender:     s.sender,
		Headers:    map[string]string{},
	}
	if msg.Sender == "" {
		msg.Sender = parsed.Header.Get("From")
	}
	if len(s.recipients) > 0 {
		msg.Recipient = s.recipients[0]
	}
	if date, err := parsed.Header.Date(); err == nil {
		msg.ReceivedAt = date
	}
	if ct := parsed.Header.Get("Content-Type"); strings.Contains(strings.ToLower(ct), "multipart/mixed") {
		msg.Headers["has_attachment"] = "true"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	outcome, err := s.source.service.Receive(ctx, msg)
	if err != nil {
		if core.IsValidationError(err) {
			return fmt.Errorf("550 Rejected: %v", err)
		}
		s.source.logger.Error("Ingestion failed",
			zap.String("sender", msg.Sender),
			zap.Error(err))
		return fmt.Errorf("451 Temporary failure")
	}

	s.source.logger.Info("Message accepted",
		zap.String("message_id", outcome.MessageID),
		zap.String("status", string(outcome.Status)),
		zap.Bool("queued", outcome.Queued))

	return nil
}

func (s *smtpSession) Logout() error {
	return nil
}
