package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/adapters/smtpsource"
	"github.com/mikey/mail-triage/internal/classifier"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/dispatch"
	"github.com/mikey/mail-triage/internal/engine"
	"github.com/mikey/mail-triage/internal/factory"
	"github.com/mikey/mail-triage/internal/logging"
	"github.com/mikey/mail-triage/internal/poller"
	"github.com/mikey/mail-triage/internal/prefilter"
	"github.com/mikey/mail-triage/internal/supervisor"
	"github.com/mikey/mail-triage/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewSourceFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register result cache
	if err := container.Provide(func(f *factory.CacheFactory) (core.ResultCache, error) {
		return f.CreateResultCache()
	}); err != nil {
		return nil, err
	}

	// Register classifier chain
	if err := container.Provide(func(
		f *factory.ClassifierFactory,
		cacheFactory *factory.CacheFactory,
		cache core.ResultCache,
		tp *utils.TextProcessor,
		logger *zap.Logger,
	) (core.ChainClassifier, error) {
		stages, err := f.CreateStages()
		if err != nil {
			return nil, err
		}
		return classifier.NewChain(stages, cache, cacheFactory.IsCacheEnabled(), tp, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register rule engine
	if err := container.Provide(func(logger *zap.Logger) core.RuleEngine {
		return engine.NewEngine(logger)
	}); err != nil {
		return nil, err
	}

	// Register action dispatcher with log-only sinks
	if err := container.Provide(func(logger *zap.Logger) core.ActionDispatcher {
		return dispatch.NewDispatcher(
			dispatch.NewLogMailbox(logger),
			dispatch.NewLogNotifier(logger),
			dispatch.NewLogTaskTracker(logger),
			dispatch.NewLogSenderList(logger),
			logger,
		)
	}); err != nil {
		return nil, err
	}

	// Register message store
	if err := container.Provide(func(f *factory.StoreFactory) (core.MessageStore, error) {
		return f.CreateMessageStore()
	}); err != nil {
		return nil, err
	}

	// Register background supervisor
	if err := container.Provide(supervisor.NewSupervisor); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *supervisor.Supervisor) core.JobSupervisor {
		return s
	}); err != nil {
		return nil, err
	}

	// Register triage service
	if err := container.Provide(func(
		chain core.ChainClassifier,
		ruleEngine core.RuleEngine,
		dispatcher core.ActionDispatcher,
		store core.MessageStore,
		jobs core.JobSupervisor,
		cfg *config.Config,
		logger *zap.Logger,
	) *core.TriageService {
		return core.NewTriageService(
			chain,
			ruleEngine,
			dispatcher,
			store,
			jobs,
			cfg.GetBool("pipeline.async"),
			logger,
		)
	}); err != nil {
		return nil, err
	}

	// Register pre-filter
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*prefilter.Filter, error) {
		return prefilter.NewFilter(cfg.GetString("filters.path"), logger)
	}); err != nil {
		return nil, err
	}

	// Register mail source
	if err := container.Provide(func(f *factory.SourceFactory) core.MailSource {
		return f.CreateMailSource()
	}); err != nil {
		return nil, err
	}

	// Register poll loop
	if err := container.Provide(func(
		source core.MailSource,
		service *core.TriageService,
		filter *prefilter.Filter,
		cfg *config.Config,
		logger *zap.Logger,
	) (*poller.Poller, error) {
		interval, err := cfg.GetDuration("poller.interval")
		if err != nil {
			return nil, err
		}
		return poller.NewPoller(
			source,
			service,
			filter,
			interval,
			cfg.GetInt("poller.batch_size"),
			cfg.GetString("poller.query"),
			logger,
		), nil
	}); err != nil {
		return nil, err
	}

	// Register inbound SMTP source
	if err := container.Provide(func(
		service *core.TriageService,
		cfg *config.Config,
		logger *zap.Logger,
	) *smtpsource.SMTPSource {
		return smtpsource.NewSMTPSource(service, cfg.GetString("smtp.listen_address"), logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
