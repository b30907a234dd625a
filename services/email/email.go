// Package emailsvc implements core.EmailService.
package emailsvc

import (
	"net/mail"

	"github.com/luna-app/luna/core"
)

func fromAddress(conf *core.Config) mail.Address {
	addr, err := mail.ParseAddress(conf.DefaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: conf.DefaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = conf.AppName
	}
	return *addr
}

func subjectPrefix(conf *core.Config) string {
	return "[" + conf.AppName + "] "
}

// New returns SendGrid when an API key is configured, the console otherwise.
func New(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.SendgridAPIKey != "" && !conf.Debug {
		return NewSendgridService(conf, logger)
	}
	return NewConsoleService(conf, logger)
}
