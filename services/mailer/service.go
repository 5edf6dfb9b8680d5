// Package mailer sends transactional email. Delivery is best effort: sends
// run on a bounded worker pool, failures are logged and never retried, and a
// missing SMTP configuration downgrades every send to a log line.
package mailer

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/sourcegraph/conc/pool"
)

const maxSendWorkers = 4

// SMTPConfig carries the outbound mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c SMTPConfig) configured() bool {
	return c.Host != "" && c.From != ""
}

// Service queues and delivers notification email.
type Service struct {
	cfg             SMTPConfig
	frontendBaseURL string
	pool            *pool.Pool
	log             *slog.Logger

	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewService creates a mailer. An empty SMTP host turns the mailer into a
// logging no-op, which keeps development environments working without a
// relay.
func NewService(cfg SMTPConfig, frontendBaseURL string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg:             cfg,
		frontendBaseURL: strings.TrimRight(frontendBaseURL, "/"),
		pool:            pool.New().WithMaxGoroutines(maxSendWorkers),
		log:             log,
		send:            smtp.SendMail,
	}
}

// SigningURL builds the public magic-link URL for a shipment.
func (s *Service) SigningURL(shipmentID, token string) string {
	return fmt.Sprintf("%s/sign/%s/%s", s.frontendBaseURL, shipmentID, token)
}

// QueueSalesConfirmation submits a signature-request email to the send pool
// and returns immediately. Failures are logged, never surfaced to the
// workflow that triggered the send.
func (s *Service) QueueSalesConfirmation(to, sellerName, shipmentRef, shipmentID, token string) {
	url := s.SigningURL(shipmentID, token)
	if !s.cfg.configured() {
		s.log.Info("mailer not configured, dropping sales confirmation",
			"to", to, "ref", shipmentRef, "url", url)
		return
	}

	subject := fmt.Sprintf("Sales confirmation %s from %s", shipmentRef, sellerName)
	body := salesConfirmationBody(sellerName, shipmentRef, url)

	s.pool.Go(func() {
		if err := s.deliver(to, subject, body); err != nil {
			s.log.Error("failed to send sales confirmation",
				"to", to, "ref", shipmentRef, "error", err)
			return
		}
		s.log.Info("sales confirmation sent", "to", to, "ref", shipmentRef)
	})
}

// Close waits for in-flight sends to finish.
func (s *Service) Close() {
	s.pool.Wait()
}

func (s *Service) deliver(to, subject, htmlBody string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	return s.send(addr, auth, s.cfg.From, []string{to}, []byte(msg.String()))
}

func salesConfirmationBody(sellerName, shipmentRef, url string) string {
	return fmt.Sprintf(`<html><body>
<p>%s has sent you a sales confirmation for shipment <strong>%s</strong>.</p>
<p>Review the document and approve or reject it here:</p>
<p><a href="%s">%s</a></p>
<p>This link is valid for a limited time and can be used once.</p>
</body></html>`, sellerName, shipmentRef, url, url)
}
