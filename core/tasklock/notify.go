package tasklock

import (
	"context"
	"strconv"

	"github.com/cloudverse/metering-center/config"
	"github.com/cloudverse/metering-center/core/dao"
	"github.com/cloudverse/metering-center/pkg/mail"
)

// SMTPMailer sends notifications through the configured SMTP endpoint.
type SMTPMailer struct {
	cfg config.EmailConfig
}

func NewSMTPMailer(cfg config.EmailConfig) SMTPMailer {
	return SMTPMailer{cfg: cfg}
}

func (m SMTPMailer) SendEmail(ctx context.Context, subject string, receivers []string, message, tag string) error {
	port, err := strconv.ParseInt(m.cfg.SMTPPort, 10, 64)
	if err != nil {
		return err
	}

	msg := mail.NewEmailMessage(m.cfg.From, m.cfg.Nickname, subject, "text/plain", message, "", receivers, nil)
	client := mail.NewEmailClient(m.cfg.SMTPHost, m.cfg.Username, m.cfg.Password, int(port), msg)
	if _, err := client.SendMessage(); err != nil {
		return err
	}

	log.Debugf("sent %s mail to %d receivers", tag, len(receivers))
	return nil
}

// DBUserDirectory resolves receivers from the users table.
type DBUserDirectory struct{}

func (DBUserDirectory) ListAdminUsernames(ctx context.Context) ([]string, error) {
	return dao.ListFedAdminUsernames(ctx)
}
