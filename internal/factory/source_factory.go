package factory

import (
	"github.com/mikey/mail-triage/internal/adapters/imapsource"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"go.uber.org/zap"
)

// SourceFactory creates mail sources based on configuration
type SourceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSourceFactory creates a new mail source factory
func NewSourceFactory(cfg *config.Config, logger *zap.Logger) *SourceFactory {
	return &SourceFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateMailSource creates the IMAP mail source for the poll loop
func (f *SourceFactory) CreateMailSource() core.MailSource {
	imapCfg := f.cfg.GetIMAP()
	return imapsource.NewIMAPSource(
		imapCfg.Host,
		imapCfg.Port,
		imapCfg.TLS,
		imapCfg.Mailbox,
		f.logger,
	)
}

// Credentials returns the configured mail source credentials
func (f *SourceFactory) Credentials() map[string]string {
	imapCfg := f.cfg.GetIMAP()
	return map[string]string{
		"username": imapCfg.Username,
		"password": imapCfg.Password,
	}
}
