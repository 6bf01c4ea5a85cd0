package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strings"
	texttemplate "text/template"
	"time"

	"clubhouse/internal/config"
)

type IMailService interface {
	Send(ctx context.Context, email Email) error
}

// Email is one outgoing message. RawHTML, when set, replaces the rendered layout.
type Email struct {
	To         string
	Subject    string
	Title      string
	Intro      string
	Lines      []string
	ButtonURL  string
	ButtonText string
	RawHTML    string
}

type smtpMailService struct {
	cfg     config.SMTPConfig
	appName string
	htmlTpl *template.Template
	textTpl *texttemplate.Template
	dialer  *net.Dialer
	nowFunc func() time.Time
}

func NewSMTPMailService(cfg config.SMTPConfig, appName string) IMailService {
	return &smtpMailService{
		cfg:     cfg,
		appName: appName,
		htmlTpl: template.Must(template.New("html").Parse(baseHTMLTemplate)),
		textTpl: texttemplate.Must(texttemplate.New("text").Parse(plainTextTemplate)),
		dialer:  &net.Dialer{Timeout: 10 * time.Second},
		nowFunc: time.Now,
	}
}

func (s *smtpMailService) Send(ctx context.Context, email Email) error {
	if email.To == "" {
		return errors.New("mail: empty recipient")
	}
	html, text, err := s.render(email)
	if err != nil {
		return fmt.Errorf("mail: render %q: %w", email.Subject, err)
	}
	return s.send(ctx, email.To, email.Subject, html, text)
}

type emailData struct {
	Email
	AppName string
	Year    int
}

const baseHTMLTemplate = `<!doctype html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width,initial-scale=1">
  <title>{{.Title}}</title>
  <style>
    body { margin: 0; padding: 0; background: #eef3ee; color: #1f2a1f; font-family: -apple-system, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; }
    .wrapper { width: 100%; padding: 32px 12px; box-sizing: border-box; }
    .container { max-width: 600px; margin: 0 auto; background: #ffffff; border-radius: 12px; overflow: hidden; box-shadow: 0 8px 24px rgba(0, 0, 0, 0.08); }
    .header { padding: 24px 28px; background: #2f5d3a; color: #ffffff; font-weight: 700; font-size: 20px; letter-spacing: 0.4px; }
    .hero { padding: 28px; }
    h1 { margin: 0 0 14px; font-size: 24px; color: #1f2a1f; }
    p { margin: 0 0 14px; line-height: 1.6; color: #3d4a3d; font-size: 15px; }
    ul { padding-left: 18px; color: #3d4a3d; }
    li { margin-bottom: 6px; line-height: 1.5; }
    .btn { display: inline-block; margin: 18px 0; padding: 14px 28px; background: #2f5d3a; color: #ffffff !important; text-decoration: none; border-radius: 8px; font-weight: 600; }
    .muted { color: #6b776b; font-size: 12px; word-break: break-all; }
    .footer { padding: 18px 28px; color: #6b776b; font-size: 12px; text-align: center; background: #f6f8f6; }
  </style>
</head>
<body>
  <div class="wrapper">
    <div class="container">
      <div class="header">{{.AppName}}</div>
      <div class="hero">
        <h1>{{.Title}}</h1>
        {{if .Intro}}<p>{{.Intro}}</p>{{end}}
        {{if .Lines}}<ul>{{range .Lines}}<li>{{.}}</li>{{end}}</ul>{{end}}
        {{if .ButtonURL}}
          <a class="btn" href="{{.ButtonURL}}">{{.ButtonText}}</a>
          <p class="muted">If the button doesn't work, open {{.ButtonURL}}</p>
        {{end}}
      </div>
      <div class="footer">© {{.Year}} {{.AppName}}</div>
    </div>
  </div>
</body>
</html>`

const plainTextTemplate = `{{.Title}}

{{.Intro}}
{{range .Lines}}
- {{.}}{{end}}
{{if .ButtonURL}}
{{.ButtonText}}: {{.ButtonURL}}
{{end}}
{{.AppName}} (c) {{.Year}}
`

func (s *smtpMailService) render(email Email) (string, string, error) {
	if email.Title == "" {
		email.Title = email.Subject
	}
	data := emailData{Email: email, AppName: s.appName, Year: s.nowFunc().Year()}

	var tb bytes.Buffer
	if err := s.textTpl.Execute(&tb, data); err != nil {
		return "", "", err
	}
	if email.RawHTML != "" {
		return email.RawHTML, tb.String(), nil
	}

	var hb bytes.Buffer
	if err := s.htmlTpl.Execute(&hb, data); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}

func (s *smtpMailService) buildMessage(to, subject, htmlBody, textBody string) []byte {
	boundary := fmt.Sprintf("alt_%d", s.nowFunc().UnixNano())

	var msg bytes.Buffer
	write := func(format string, a ...any) { _, _ = fmt.Fprintf(&msg, format, a...) }

	write("From: %s\r\n", s.formatFromHeader())
	write("To: %s\r\n", to)
	write("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject))
	write("Date: %s\r\n", s.nowFunc().Format(time.RFC1123Z))
	write("MIME-Version: 1.0\r\n")
	write("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	write("--%s\r\n", boundary)
	write("Content-Type: text/plain; charset=UTF-8\r\n")
	write("Content-Transfer-Encoding: 8bit\r\n\r\n")
	write("%s\r\n\r\n", textBody)

	write("--%s\r\n", boundary)
	write("Content-Type: text/html; charset=UTF-8\r\n")
	write("Content-Transfer-Encoding: 8bit\r\n\r\n")
	write("%s\r\n\r\n", htmlBody)

	write("--%s--\r\n", boundary)
	return msg.Bytes()
}

func (s *smtpMailService) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	msg := s.buildMessage(to, subject, htmlBody, textBody)
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	tlsCfg := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}

	var conn net.Conn
	var err error
	if s.cfg.UseSSL {
		// SMTPS, usually 465
		conn, err = (&tls.Dialer{NetDialer: s.dialer, Config: tlsCfg}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = s.dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("mail: dial %s: %w", addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer c.Quit()

	if !s.cfg.UseSSL {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err = c.StartTLS(tlsCfg); err != nil {
				return err
			}
		} else if s.cfg.RequireTLS {
			return errors.New("mail: server does not support STARTTLS and require_tls is set")
		}
	}

	if s.cfg.Username != "" {
		if err = c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return err
		}
	}
	if err = c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err = c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

func (s *smtpMailService) formatFromHeader() string {
	name := strings.TrimSpace(s.cfg.FromName)
	if name == "" {
		return s.cfg.From
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("UTF-8", name), s.cfg.From)
}
