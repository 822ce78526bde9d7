package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/KNICEX/crypto-alert/internal/service/notification"
)

var _ notification.EmailService = (*Service)(nil)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// From 为空时使用 Username
	From string
	// ImplicitTLS 465 端口直接 TLS, 否则尝试 STARTTLS
	ImplicitTLS bool
}

type Service struct {
	cfg     Config
	timeout time.Duration
}

type Option func(s *Service)

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

func NewService(cfg Config, opts ...Option) *Service {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	s := &Service{
		cfg:     cfg,
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) SendText(ctx context.Context, to, subject, body string) error {
	return s.send(ctx, to, subject, "text/plain", body)
}

func (s *Service) SendHTML(ctx context.Context, to, subject, body string) error {
	return s.send(ctx, to, subject, "text/html", body)
}

func (s *Service) checkCredentials() error {
	var missing []string
	if s.cfg.Host == "" {
		missing = append(missing, "host")
	}
	if s.cfg.Username == "" {
		missing = append(missing, "username")
	}
	if s.cfg.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return &notification.CredentialError{Channel: "email", Missing: missing}
	}
	return nil
}

func (s *Service) send(ctx context.Context, to, subject, contentType, body string) error {
	if err := s.checkCredentials(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, err := s.dial(ctx)
	if err != nil {
		return deliveryErr("dial", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return deliveryErr("handshake", err)
	}
	defer c.Close()

	if !s.cfg.ImplicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err = c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
				return deliveryErr("starttls", err)
			}
		}
	}
	if ok, _ := c.Extension("AUTH"); ok {
		if err = c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return deliveryErr("auth", err)
		}
	}

	if err = c.Mail(s.cfg.From); err != nil {
		return deliveryErr("mail", err)
	}
	if err = c.Rcpt(to); err != nil {
		return deliveryErr("rcpt", err)
	}
	w, err := c.Data()
	if err != nil {
		return deliveryErr("data", err)
	}
	if _, err = w.Write(buildMessage(s.cfg.From, to, subject, contentType, body)); err != nil {
		_ = w.Close()
		return deliveryErr("data", err)
	}
	if err = w.Close(); err != nil {
		return deliveryErr("data", err)
	}
	return c.Quit()
}

func (s *Service) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialer := &net.Dialer{Timeout: s.timeout}
	if s.cfg.ImplicitTLS {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: s.cfg.Host},
		}
		return tlsDialer.DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

func buildMessage(from, to, subject, contentType, body string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	buf.WriteString("\r\n")
	buf.WriteString(body)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

func deliveryErr(op string, err error) error {
	return &notification.DeliveryError{Channel: "email", Op: op, Err: err}
}
