package email

import (
	"fmt"
	"net/smtp"

	"github.com/Dan9191/loan-service/internal/config"
	"github.com/Dan9191/loan-service/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// BuildDecisionEmail renders the decision notification for an application
func (s *Sender) BuildDecisionEmail(to, username string, app *models.Application) *email.Email {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}

	body := fmt.Sprintf("Dear %s,\n\n", username)
	switch app.Status {
	case models.StatusApproved:
		e.Subject = fmt.Sprintf("Loan application %s approved", app.Reference)
		amount := app.LoanAmount
		if app.ApprovedAmount != nil {
			amount = *app.ApprovedAmount
		}
		body += fmt.Sprintf(
			"Your loan application %s has been approved for %.2f.\n"+
				"Tenure: %d months.\n",
			app.Reference, amount, app.TenureMonths,
		)
	case models.StatusRejected:
		e.Subject = fmt.Sprintf("Loan application %s decision", app.Reference)
		body += fmt.Sprintf(
			"We are unable to approve your loan application %s at this time.\n",
			app.Reference,
		)
	default:
		e.Subject = fmt.Sprintf("Loan application %s under review", app.Reference)
		body += fmt.Sprintf(
			"Your loan application %s has been queued for manual review.\n"+
				"A loan officer will contact you shortly.\n",
			app.Reference,
		)
	}
	if app.Message != "" {
		body += "\n" + app.Message + "\n"
	}
	body += "\nBest regards,\nLoan Service"
	e.Text = []byte(body)
	return e
}

// SendDecision sends the decision notification for an application
func (s *Sender) SendDecision(to, username string, app *models.Application) error {
	if s.cfg.SMTPHost == "" {
		s.logger.Debugf("SMTP disabled, skipping decision email for %s", app.Reference)
		return nil
	}
	e := s.BuildDecisionEmail(to, username, app)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}
