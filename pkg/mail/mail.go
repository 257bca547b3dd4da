package mail

import (
	"fmt"
	"net/smtp"
	"strings"
)

// EmailMessage is a single outgoing mail.
type EmailMessage struct {
	From        string
	FromName    string
	Subject     string
	ContentType string
	Content     string
	Attachment  string
	To          []string
	Cc          []string
}

func NewEmailMessage(from, fromName, subject, contentType, content, attachment string, to, cc []string) *EmailMessage {
	if contentType == "" {
		contentType = "text/plain"
	}

	return &EmailMessage{
		From:        from,
		FromName:    fromName,
		Subject:     subject,
		ContentType: contentType,
		Content:     content,
		Attachment:  attachment,
		To:          to,
		Cc:          cc,
	}
}

func (m *EmailMessage) bytes() []byte {
	var buf strings.Builder

	if m.FromName != "" {
		buf.WriteString(fmt.Sprintf("From: %s <%s>\r\n", m.FromName, m.From))
	} else {
		buf.WriteString(fmt.Sprintf("From: %s\r\n", m.From))
	}
	buf.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(m.To, ",")))
	if len(m.Cc) > 0 {
		buf.WriteString(fmt.Sprintf("Cc: %s\r\n", strings.Join(m.Cc, ",")))
	}
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", m.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString(fmt.Sprintf("Content-Type: %s; charset=UTF-8\r\n", m.ContentType))
	buf.WriteString("\r\n")
	buf.WriteString(m.Content)

	return []byte(buf.String())
}

// EmailClient sends messages through a single SMTP endpoint.
type EmailClient struct {
	Host     string
	Username string
	Password string
	Port     int
	Message  *EmailMessage
}

func NewEmailClient(host, username, password string, port int, message *EmailMessage) *EmailClient {
	return &EmailClient{
		Host:     host,
		Username: username,
		Password: password,
		Port:     port,
		Message:  message,
	}
}

func (c *EmailClient) SendMessage() (bool, error) {
	if c.Message == nil {
		return false, fmt.Errorf("no message to send")
	}
	if len(c.Message.To) == 0 {
		return false, fmt.Errorf("no receivers")
	}

	addr := fmt.Sprintf("%s:%d", c.Host, c.Port)
	auth := smtp.PlainAuth("", c.Username, c.Password, c.Host)

	receivers := append([]string{}, c.Message.To...)
	receivers = append(receivers, c.Message.Cc...)

	if err := smtp.SendMail(addr, auth, c.Message.From, receivers, c.Message.bytes()); err != nil {
		return false, err
	}

	return true, nil
}
