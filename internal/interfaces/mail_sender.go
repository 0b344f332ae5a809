package interfaces

// MailSender defines the contract for outbound report mail
type MailSender interface {
	Send(to []string, subject, textBody, htmlBody string) error
}
