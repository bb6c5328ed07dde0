package service

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/hspatel/fileshare/internal/config"
	appErr "github.com/hspatel/fileshare/internal/pkg/errors"
)

type Notifier interface {
	Notify(ctx context.Context, to, fileName, link string, validFor time.Duration) error
}

var shareEmailTmpl = template.Must(template.New("share_email").Parse(`<!DOCTYPE html>
<html>
<body>
    <p>Hello,</p>
    <p>A file has been uploaded and is available to download for {{.ValidFor}}.</p>
    <p><a href="{{.Link}}">Click here to download {{.FileName}}</a></p>
    <p>Thanks,<br>File Sharing App</p>
</body>
</html>
`))

type smtpNotifier struct {
	cfg config.MailConfig
}

func NewSMTPNotifier(cfg config.MailConfig) Notifier {
	return &smtpNotifier{cfg: cfg}
}

func (n *smtpNotifier) Notify(ctx context.Context, to, fileName, link string, validFor time.Duration) error {
	from := strings.TrimSpace(n.cfg.From)
	if n.cfg.Host == "" || n.cfg.Port == 0 || from == "" {
		return appErr.ErrInvalid
	}
	body, err := renderShareEmail(fileName, link, validFor)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject("File Available: " + fileName)
	msg.SetBodyString(mail.TypeTextHTML, body)

	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}
	client, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.DialAndSendWithContext(ctx, msg)
}

func renderShareEmail(fileName, link string, validFor time.Duration) (string, error) {
	var sb strings.Builder
	err := shareEmailTmpl.Execute(&sb, map[string]interface{}{
		"FileName": fileName,
		"Link":     link,
		"ValidFor": formatValidity(validFor),
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

func formatValidity(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(d / time.Minute)
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
