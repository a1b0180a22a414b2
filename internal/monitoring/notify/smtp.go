package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTPChannel delivers messages over SMTP. Port 465 connects with implicit
// TLS, anything else upgrades via STARTTLS when the server offers it.
type SMTPChannel struct {
	host       string
	port       int
	username   string
	password   string
	from       string
	recipients []string
}

// NewSMTPChannel constructs an SMTP channel.
func NewSMTPChannel(host string, port int, username, password, from string, recipients []string) (*SMTPChannel, error) {
	if host == "" {
		return nil, errors.New("smtp channel: empty host")
	}
	if port <= 0 {
		port = 587
	}
	if from == "" {
		return nil, errors.New("smtp channel: empty from address")
	}
	if len(recipients) == 0 {
		return nil, errors.New("smtp channel: no recipients")
	}
	return &SMTPChannel{
		host:       host,
		port:       port,
		username:   username,
		password:   password,
		from:       from,
		recipients: recipients,
	}, nil
}

// Name identifies the channel in logs and metrics.
func (c *SMTPChannel) Name() string { return "smtp" }

// Send delivers one message to all recipients.
func (c *SMTPChannel) Send(ctx context.Context, msg Message) error {
	if c == nil {
		return errors.New("smtp channel: nil channel")
	}
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if c.username != "" && c.password != "" {
		auth := smtp.PlainAuth("", c.username, c.password, c.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp channel: auth failed: %w", err)
		}
	}
	if err := client.Mail(c.from); err != nil {
		return fmt.Errorf("smtp channel: set sender: %w", err)
	}
	for _, recipient := range c.recipients {
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("smtp channel: set recipient %s: %w", recipient, err)
		}
	}
	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp channel: open data: %w", err)
	}
	if _, err := writer.Write(c.build(msg)); err != nil {
		writer.Close()
		return fmt.Errorf("smtp channel: write data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp channel: close data: %w", err)
	}
	return client.Quit()
}

func (c *SMTPChannel) connect(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
	dialer := &net.Dialer{Timeout: 15 * time.Second}

	if c.port == 465 {
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: c.host})
		if err != nil {
			return nil, fmt.Errorf("smtp channel: tls dial: %w", err)
		}
		client, err := smtp.NewClient(conn, c.host)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("smtp channel: new client: %w", err)
		}
		return client, nil
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("smtp channel: dial: %w", err)
	}
	client, err := smtp.NewClient(conn, c.host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp channel: new client: %w", err)
	}
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: c.host}); err != nil {
			client.Close()
			return nil, fmt.Errorf("smtp channel: starttls: %w", err)
		}
	}
	return client, nil
}

func (c *SMTPChannel) build(msg Message) []byte {
	body := msg.HTML
	contentType := "text/html; charset=UTF-8"
	if body == "" {
		body = msg.Text
		contentType = "text/plain; charset=UTF-8"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", c.from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(c.recipients, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: %s\r\n", contentType)
	buf.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return buf.Bytes()
}
