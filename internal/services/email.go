package services

import (
	"fmt"
	"html"
	"log"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/Kamalbura/lms-sub001/internal/models"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
	emailAppName     = "LMS Office Hours"
)

type EmailConfig struct {
	Provider       string // smtp | sendgrid
	SendGridAPIKey string
	SMTPHost       string
	SMTPPort       string
	SMTPUser       string
	SMTPPass       string
	From           string
	FrontendURL    string
}

type EmailService struct {
	cfg     EmailConfig
	devMode bool
}

func NewEmailService(cfg EmailConfig) *EmailService {
	devMode := false
	switch cfg.Provider {
	case "sendgrid":
		devMode = cfg.SendGridAPIKey == ""
	default:
		cfg.Provider = "smtp"
		devMode = cfg.SMTPHost == "" || cfg.SMTPUser == ""
	}
	if devMode {
		log.Println("⚠ Email service running in DEV MODE (logging to console)")
	}
	return &EmailService{cfg: cfg, devMode: devMode}
}

// SendOfficeHourEmail renders the message for a notification kind and sends it
// to one participant. counterpart is the other participant's display name.
func (s *EmailService) SendOfficeHourEmail(to *models.User, kind string, session *models.OfficeHourSession, counterpart string) error {
	heading, lead := officeHourCopy(kind, session, counterpart)
	if heading == "" {
		return fmt.Errorf("no email template for notification kind %q", kind)
	}

	sessionURL := fmt.Sprintf("%s/office-hours/%s", s.cfg.FrontendURL, session.ID)
	subject := heading + ": " + session.Topic
	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: 'Segoe UI', Arial, sans-serif; margin: 0; padding: 0; background-color: #f8fafc;">
  <div style="max-width: 480px; margin: 40px auto; background: white; border-radius: 12px; box-shadow: 0 4px 24px rgba(0,0,0,0.08); overflow: hidden;">
    <div style="background: linear-gradient(135deg, #0ea5e9 0%%, #6366f1 100%%); padding: 32px; text-align: center;">
      <h1 style="color: white; margin: 0; font-size: 24px; font-weight: 700;">Office Hours</h1>
    </div>
    <div style="padding: 32px;">
      <p style="color: #334155; font-size: 14px; margin: 0 0 8px;">Hi %s,</p>
      <h2 style="margin: 0 0 16px; font-size: 20px; color: #1e293b;">%s</h2>
      <p style="color: #64748b; font-size: 14px; line-height: 1.6; margin: 0 0 16px;">%s</p>
      <table style="font-size: 14px; color: #334155; margin: 0 0 24px;">
        <tr><td style="padding: 4px 12px 4px 0; color: #94a3b8;">Topic</td><td>%s</td></tr>
        <tr><td style="padding: 4px 12px 4px 0; color: #94a3b8;">When</td><td>%s</td></tr>
      </table>
      <a href="%s" style="display: inline-block; background: #6366f1; color: white; text-decoration: none; padding: 12px 32px; border-radius: 8px; font-weight: 600; font-size: 14px;">
        Open session
      </a>
    </div>
  </div>
</body>
</html>`,
		html.EscapeString(to.FullName),
		heading,
		html.EscapeString(lead),
		html.EscapeString(session.Topic),
		formatSessionWindow(session),
		sessionURL,
	)

	return s.send(to.Email, to.FullName, subject, body)
}

func officeHourCopy(kind string, session *models.OfficeHourSession, counterpart string) (heading, lead string) {
	switch kind {
	case models.NotifySessionScheduled:
		return "Office hour scheduled", fmt.Sprintf("A session with %s has been booked.", counterpart)
	case models.NotifySessionUpdated:
		return "Office hour updated", fmt.Sprintf("%s changed the details of your session.", counterpart)
	case models.NotifySessionStarted:
		return "Your office hour has started", fmt.Sprintf("%s is waiting in the meeting room.", counterpart)
	case models.NotifySessionCompleted:
		lead := fmt.Sprintf("Your session with %s has ended.", counterpart)
		if d := session.Analytics.ActualDurationMinutes; d != nil {
			lead = fmt.Sprintf("Your session with %s has ended after %d minutes.", counterpart, *d)
		}
		return "Office hour completed", lead
	case models.NotifySessionCancelled:
		lead := fmt.Sprintf("%s cancelled the session.", counterpart)
		if session.CancellationReason != "" {
			lead += " Reason: " + session.CancellationReason
		}
		return "Office hour cancelled", lead
	case models.NotifySessionReminder:
		return "Office hour starting soon", fmt.Sprintf("Your session with %s starts shortly.", counterpart)
	case models.NotifyFeedbackReceived:
		rating := 0
		if session.Feedback != nil {
			rating = session.Feedback.Rating
		}
		return "New session feedback", fmt.Sprintf("%s rated your session %d out of 5.", counterpart, rating)
	}
	return "", ""
}

func formatSessionWindow(session *models.OfficeHourSession) string {
	start := session.ScheduledStart.UTC()
	end := session.ScheduledEnd.UTC()
	return fmt.Sprintf("%s, %s–%s UTC", start.Format("Mon Jan 2"), start.Format("15:04"), end.Format("15:04"))
}

func (s *EmailService) send(to, toName, subject, htmlBody string) error {
	if s.devMode {
		log.Printf("📧 [DEV EMAIL] To: %s | Subject: %s", to, subject)
		log.Printf("📧 Body:\n%s", htmlBody)
		return nil
	}

	var err error
	if s.cfg.Provider == "sendgrid" {
		err = s.sendViaSendGrid(to, toName, subject, htmlBody)
	} else {
		err = s.sendViaSMTP(to, subject, htmlBody)
	}
	if err != nil {
		return err
	}

	log.Printf("📧 Email sent to %s: %s", to, subject)
	return nil
}

func (s *EmailService) sendViaSMTP(to, subject, htmlBody string) error {
	headers := []string{
		fmt.Sprintf("From: %s", s.cfg.From),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		fmt.Sprintf("Date: %s", time.Now().UTC().Format(time.RFC1123Z)),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}

	message := strings.Join(headers, "\r\n") + "\r\n\r\n" + htmlBody

	auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

func (s *EmailService) sendViaSendGrid(to, toName, subject, htmlBody string) error {
	p := sgmail.NewPersonalization()
	p.Subject = subject
	p.AddTos(sgmail.NewEmail(toName, to))

	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail(emailAppName, s.cfg.From))
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/html", htmlBody))

	req := sendgrid.GetRequest(s.cfg.SendGridAPIKey, sendGridEndpoint, sendGridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("failed to send email to %s: sendgrid status %d: %s", to, res.StatusCode, res.Body)
	}
	return nil
}
