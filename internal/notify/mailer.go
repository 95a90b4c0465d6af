package notify

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/wneessen/go-mail"
)

// SMTPAccount identifies the mailbox a message is sent from.
type SMTPAccount struct {
	// Service is a well-known provider name ("gmail", "qq", "163", ...) or
	// an explicit "host:port".
	Service  string
	Username string
	Password string
}

// Mail is a single HTML message.
type Mail struct {
	FromName string
	From     string
	To       string
	Subject  string
	HTML     string
}

// Mailer delivers mail and returns the message id assigned to it.
type Mailer interface {
	Send(ctx context.Context, account SMTPAccount, m Mail) (string, error)
}

type smtpEndpoint struct {
	host string
	port int
	// implicitTLS selects SMTPS; otherwise STARTTLS is required.
	implicitTLS bool
}

// wellKnownSMTP mirrors the service shortcuts common mail libraries accept.
var wellKnownSMTP = map[string]smtpEndpoint{
	"126":        {"smtp.126.com", 465, true},
	"163":        {"smtp.163.com", 465, true},
	"139":        {"smtp.139.com", 465, true},
	"aliyun":     {"smtp.aliyun.com", 465, true},
	"gmail":      {"smtp.gmail.com", 465, true},
	"hotmail":    {"smtp-mail.outlook.com", 587, false},
	"icloud":     {"smtp.mail.me.com", 587, false},
	"outlook365": {"smtp.office365.com", 587, false},
	"qq":         {"smtp.qq.com", 465, true},
	"qqex":       {"smtp.exmail.qq.com", 465, true},
	"sendgrid":   {"smtp.sendgrid.net", 587, false},
	"yahoo":      {"smtp.mail.yahoo.com", 465, true},
	"yandex":     {"smtp.yandex.ru", 465, true},
	"zoho":       {"smtp.zoho.com", 465, true},
}

func resolveSMTP(service string) (smtpEndpoint, error) {
	if ep, ok := wellKnownSMTP[strings.ToLower(strings.TrimSpace(service))]; ok {
		return ep, nil
	}
	host, portStr, err := net.SplitHostPort(service)
	if err != nil {
		return smtpEndpoint{}, fmt.Errorf("unknown smtp service %q", service)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return smtpEndpoint{}, fmt.Errorf("invalid smtp port %q", portStr)
	}
	return smtpEndpoint{host: host, port: port, implicitTLS: port == 465}, nil
}

// SMTPMailer sends mail with go-mail, one connection per message.
type SMTPMailer struct {
	opts []mail.Option
}

// NewSMTPMailer creates a mailer. Extra client options are applied after
// the endpoint and credential options.
func NewSMTPMailer(opts ...mail.Option) *SMTPMailer {
	return &SMTPMailer{opts: opts}
}

func (s *SMTPMailer) Send(ctx context.Context, account SMTPAccount, m Mail) (string, error) {
	ep, err := resolveSMTP(account.Service)
	if err != nil {
		return "", err
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(m.FromName, m.From); err != nil {
		return "", fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return "", fmt.Errorf("to address: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, m.HTML)

	opts := []mail.Option{
		mail.WithPort(ep.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(account.Username),
		mail.WithPassword(account.Password),
		mail.WithTimeout(defaultTimeout),
	}
	if ep.implicitTLS {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	opts = append(opts, s.opts...)

	client, err := mail.NewClient(ep.host, opts...)
	if err != nil {
		return "", fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", err
	}

	ids := msg.GetGenHeader(mail.HeaderMessageID)
	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], nil
}
