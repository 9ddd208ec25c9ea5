// Package mailer delivers one-time codes.
//
// SMTPSender speaks plain SMTP with optional PLAIN auth and STARTTLS. LogSender
// only logs the delivery and is meant for local development.
package mailer
