package imapsource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"github.com/mikey/mail-triage/internal/core"
	"go.uber.org/zap"
)

// IMAPSource is a MailSource over an IMAP mailbox. Each fetch opens a
// fresh session, so a dropped connection heals on the next poll cycle.
type IMAPSource struct {
	host    string
	port    string
	tls     bool
	mailbox string
	logger  *zap.Logger

	mu        sync.Mutex
	username  string
	password  string
	connected bool
}

// NewIMAPSource creates a mail source for the given server. Credentials
// arrive through Connect.
func NewIMAPSource(host, port string, tls bool, mailbox string, logger *zap.Logger) *IMAPSource {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &IMAPSource{
		host:    host,
		port:    port,
		tls:     tls,
		mailbox: mailbox,
		logger:  logger,
	}
}

// Connect verifies the credentials with a login round-trip and stores them
// for subsequent fetches.
func (s *IMAPSource) Connect(ctx context.Context, credentials map[string]string) error {
	username := credentials["username"]
	password := credentials["password"]

	client, err := s.dial(username, password)
	if err != nil {
		return err
	}
	_ = client.Logout().Wait()

	s.mu.Lock()
	s.username = username
	s.password = password
	s.connected = true
	s.mu.Unlock()

	s.logger.Info("Mail source connected",
		zap.String("host", s.host),
		zap.String("mailbox", s.mailbox),
		zap.String("username", username))

	return nil
}

// IsConnected reports whether Connect succeeded.
func (s *IMAPSource) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// dial opens and authenticates one IMAP session.
func (s *IMAPSource) dial(username, password string) (*imapclient.Client, error) {
	addr := s.host + ":" + s.port

	var client *imapclient.Client
	var err error
	if s.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(username, password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("authentication failed for %s: %w", username, err)
	}

	return client, nil
}

// FetchMessages pulls up to limit most-recent messages from the mailbox.
// The query, when set, is matched as an IMAP text search criterion.
func (s *IMAPSource) FetchMessages(ctx context.Context, limit int, query string) ([]core.Message, error) {
	s.mu.Lock()
	username, password, connected := s.username, s.password, s.connected
	s.mu.Unlock()

	if !connected {
		return nil, fmt.Errorf("mail source not connected")
	}

	client, err := s.dial(username, password)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(s.mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", s.mailbox, err)
	}

	criteria := &imap.SearchCriteria{
		Since: time.Now().AddDate(0, 0, -7),
	}
	if query != "" {
		criteria.Text = []string{query}
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})

	var messages []core.Message
	for {
		fetched := fetchCmd.Next()
		if fetched == nil {
			break
		}

		buf, err := fetched.Collect()
		if err != nil {
			s.logger.Warn("Failed to collect message, skipping", zap.Error(err))
			continue
		}

		messages = append(messages, s.toMessage(buf, buf.FindBodySection(bodySection)))
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetching messages: %w", err)
	}

	s.logger.Debug("Fetched messages",
		zap.Int("count", len(messages)),
		zap.String("mailbox", s.mailbox))

	return messages, nil
}

// toMessage converts one fetched IMAP message into the ingestion contract.
func (s *IMAPSource) toMessage(buf *imapclient.FetchMessageBuffer, rawBody []byte) core.Message {
	msg := core.Message{
		ExternalID: fmt.Sprintf("imap-%d", buf.UID),
		Headers:    map[string]string{},
	}

	if buf.Envelope != nil {
		msg.Subject = buf.Envelope.Subject
		msg.ReceivedAt = buf.Envelope.Date
		if buf.Envelope.MessageID != "" {
			msg.ExternalID = buf.Envelope.MessageID
		}
		if len(buf.Envelope.From) > 0 {
			msg.Sender = buf.Envelope.From[0].Addr()
		}
		if len(buf.Envelope.To) > 0 {
			msg.Recipient = buf.Envelope.To[0].Addr()
		}
	}

	if len(rawBody) > 0 {
		body, hasAttachment := parseBody(rawBody)
		msg.Body = body
		if hasAttachment {
			msg.Headers["has_attachment"] = "true"
		}
	}

	return msg
}

// parseBody extracts the text body from a raw RFC 2822 message and reports
// whether any attachment parts were present. HTML-only messages fall back
// to the HTML part; unparseable content is passed through verbatim.
func parseBody(raw []byte) (string, bool) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw), false
	}
	defer mr.Close()

	var textBody, htmlBody string
	hasAttachment := false

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			content, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				textBody = string(content)
			case strings.HasPrefix(contentType, "text/html"):
				htmlBody = string(content)
			}
		case *mail.AttachmentHeader:
			hasAttachment = true
		}
	}

	if textBody != "" {
		return textBody, hasAttachment
	}
	return htmlBody, hasAttachment
}
