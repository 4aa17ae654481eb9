package filter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/mail"
	"os"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/encryptgate/threat-engine/internal/core"
	"go.uber.org/zap"
)

// SMTPFilter is the SMTP-fed ingestion front end. It accepts messages from
// the mail source, runs the triage pipeline, stamps the threat headers, and
// relays the message onward.
type SMTPFilter struct {
	service       *core.TriageService
	logger        *zap.Logger
	listenAddr    string
	server        *smtp.Server
	blockCritical bool
	levelHeader   string
	scoreHeader   string
	reasonHeader  string
	relayAddr     string
	relayPort     int
	relayEnabled  bool
}

// NewSMTPFilter creates a new SMTP ingestion filter
func NewSMTPFilter(
	service *core.TriageService,
	logger *zap.Logger,
	listenAddr string,
	blockCritical bool,
	levelHeader string,
	scoreHeader string,
	reasonHeader string,
	relayAddr string,
	relayPort int,
	relayEnabled bool,
) *SMTPFilter {
	return &SMTPFilter{
		service:       service,
		logger:        logger,
		listenAddr:    listenAddr,
		blockCritical: blockCritical,
		levelHeader:   levelHeader,
		scoreHeader:   scoreHeader,
		reasonHeader:  reasonHeader,
		relayAddr:     relayAddr,
		relayPort:     relayPort,
		relayEnabled:  relayEnabled,
	}
}

// Start starts the SMTP server
func (f *SMTPFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.listenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("SMTP filter starting", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				f.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP server
func (f *SMTPFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail runs the triage pipeline directly, bypassing SMTP transport
func (f *SMTPFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.FusedAssessment, error) {
	assessment, _, err := f.service.ProcessEmail(ctx, email)
	return assessment, err
}

// relay sends the stamped message to the next hop
func (f *SMTPFilter) relay(sender string, recipients []string, data []byte) error {
	addr := fmt.Sprintf("%s:%d", f.relayAddr, f.relayPort)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	accepted := false
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt, nil); err != nil {
			f.logger.Warn("RCPT TO failed", zap.String("recipient", rcpt), zap.Error(err))
		} else {
			accepted = true
		}
	}
	if !accepted {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *SMTPFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	remoteIP := ""
	if c != nil && c.Conn() != nil {
		if host, _, err := net.SplitHostPort(c.Conn().RemoteAddr().String()); err == nil {
			remoteIP = host
		}
	}
	return &smtpSession{
		filter:     b.filter,
		remoteIP:   remoteIP,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *SMTPFilter
	remoteIP   string
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain is unsupported; the filter sits behind the mail source
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

// Data receives the message, runs triage and relays the stamped message
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		s.filter.logger.Error("Failed to parse message", zap.Error(err))
		return &smtp.SMTPError{Code: 550, Message: "unparseable message"}
	}

	email, err := buildEmail(msg, s.sender, s.recipients, s.remoteIP)
	if err != nil {
		s.filter.logger.Error("Failed to extract message content", zap.Error(err))
		return &smtp.SMTPError{Code: 550, Message: "unreadable message content"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	assessment, detection, err := s.filter.service.ProcessEmail(ctx, email)
	if err != nil {
		// Bad input is the only pipeline error; everything else degraded
		// inside the agents
		s.filter.logger.Error("Triage rejected message", zap.Error(err), zap.String("sender", s.sender))
		return &smtp.SMTPError{Code: 550, Message: "message rejected"}
	}

	if assessment.ThreatLevel == core.ThreatCritical && s.filter.blockCritical {
		s.filter.logger.Info("Rejecting critical message",
			zap.String("sender", email.From),
			zap.Int("score", assessment.FinalScore))
		return &smtp.SMTPError{
			Code:    550,
			Message: fmt.Sprintf("rejected as phishing (score: %d)", assessment.FinalScore),
		}
	}

	stamped := s.stampHeaders(raw, msg, assessment)
	if s.filter.relayEnabled {
		if err := s.filter.relay(s.sender, s.recipients, stamped); err != nil {
			s.filter.logger.Error("Failed to relay message", zap.Error(err), zap.String("sender", email.From))
			return err
		}
	}

	fields := []zap.Field{
		zap.String("sender", email.From),
		zap.Int("final_score", assessment.FinalScore),
		zap.String("threat_level", string(assessment.ThreatLevel)),
	}
	if detection != nil {
		fields = append(fields, zap.String("detection_id", detection.ID))
	}
	s.filter.logger.Info("Processed message", fields...)
	return nil
}

// stampHeaders prepends the threat headers to the original message,
// preserving the body bytes untouched
func (s *smtpSession) stampHeaders(raw []byte, msg *mail.Message, assessment *core.FusedAssessment) []byte {
	var out bytes.Buffer

	fmt.Fprintf(&out, "%s: %s\r\n", s.filter.levelHeader, assessment.ThreatLevel)
	fmt.Fprintf(&out, "%s: %d\r\n", s.filter.scoreHeader, assessment.FinalScore)
	if assessment.Explanation != nil && assessment.Explanation.Explanation != "" {
		fmt.Fprintf(&out, "%s: %s\r\n", s.filter.reasonHeader, firstLine(assessment.Explanation.Explanation))
	}

	for key, values := range msg.Header {
		for _, value := range values {
			fmt.Fprintf(&out, "%s: %s\r\n", key, value)
		}
	}
	out.WriteString("\r\n")

	if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx >= 0 {
		out.Write(raw[idx+4:])
	} else if idx := bytes.Index(raw, []byte("\n\n")); idx >= 0 {
		out.Write(raw[idx+2:])
	} else if body, err := io.ReadAll(msg.Body); err == nil {
		out.Write(body)
	}
	return out.Bytes()
}

func firstLine(text string) string {
	for i, r := range text {
		if r == '\n' || r == '\r' {
			return text[:i]
		}
	}
	return text
}

// Logout closes the session
func (s *smtpSession) Logout() error {
	return nil
}
