package factory

import (
	"fmt"

	"github.com/spamguard/spamguard/internal/adapters/filter"
	"github.com/spamguard/spamguard/internal/config"
	"github.com/spamguard/spamguard/internal/core"
	"github.com/spamguard/spamguard/internal/ports"
	"github.com/spamguard/spamguard/internal/whitelist"
	"go.uber.org/zap"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.SpamGuardService
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service *core.SpamGuardService) *FilterFactory {
	return &FilterFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}
}

// CreateEmailFilter creates an email filter based on the configuration
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	serverCfg := f.cfg.GetServer()

	switch serverCfg.FilterType {
	case "smtp":
		checker := whitelist.NewChecker(f.cfg.GetSpam().WhitelistedDomains, f.logger)
		smtpCfg := serverCfg.SMTP
		return filter.NewSMTPFilter(
			f.service,
			checker,
			f.logger,
			smtpCfg.ListenAddress,
			smtpCfg.BlockSpam,
			smtpCfg.RefineSpam,
			smtpCfg.FlagHeader,
			smtpCfg.ScoreHeader,
			smtpCfg.AttemptsHeader,
			smtpCfg.RefinedHeader,
			smtpCfg.RelayAddress,
			smtpCfg.RelayPort,
			smtpCfg.RelayEnabled,
		), nil
	case "cli":
		return filter.NewCliFilter(
			f.service,
			f.logger,
			f.cfg.GetBool("cli.verbose"),
			f.cfg.GetBool("cli.refine"),
		)
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", serverCfg.FilterType)
	}
}
