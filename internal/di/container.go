package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/outreach-tracker/internal/config"
	"github.com/mikey/outreach-tracker/internal/core"
	"github.com/mikey/outreach-tracker/internal/factory"
	httpserver "github.com/mikey/outreach-tracker/internal/http"
	"github.com/mikey/outreach-tracker/internal/http/handler"
	"github.com/mikey/outreach-tracker/internal/logging"
	"github.com/mikey/outreach-tracker/internal/ports"
	"github.com/mikey/outreach-tracker/internal/utils"
	"github.com/mikey/outreach-tracker/internal/whitelist"
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

	if err := provideCore(container); err != nil {
		return nil, err
	}

	// Register reply intakes
	if err := container.Provide(func(f *factory.IntakeFactory) ([]ports.ReplyIntake, error) {
		return f.CreateReplyIntakes()
	}); err != nil {
		return nil, err
	}

	// Register tracking service and HTTP server
	if err := container.Provide(core.NewTrackingService); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *whitelist.Checker {
		return whitelist.NewChecker(cfg.GetTracking().AllowedRedirectDomains, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		tracking *core.TrackingService,
		checker *whitelist.Checker,
		logger *zap.Logger,
	) *handler.TrackingHandler {
		return handler.NewTrackingHandler(tracking, checker, logger.Named("http"))
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		cfg *config.Config,
		h *handler.TrackingHandler,
		logger *zap.Logger,
	) *httpserver.Server {
		return httpserver.NewServer(cfg.GetServer(), h, logger.Named("http"))
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCore registers everything the reply pipeline needs, shared by the
// daemon and the CLI containers
func provideCore(container *dig.Container) error {
	// Register factories
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewParserFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewIntakeFactory); err != nil {
		return err
	}

	// Register tracking store, exposed through both ports
	if err := container.Provide(func(f *factory.StoreFactory) (core.TrackingStore, error) {
		return f.CreateTrackingStore()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(s core.TrackingStore) core.ContactRepository { return s }); err != nil {
		return err
	}
	if err := container.Provide(func(s core.TrackingStore) core.EventLog { return s }); err != nil {
		return err
	}

	// Register processed set
	if err := container.Provide(func(f *factory.StoreFactory) core.ProcessedSet {
		return f.CreateProcessedSet()
	}); err != nil {
		return err
	}

	// Register text processor and parser
	if err := container.Provide(func(f *factory.ParserFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.ParserFactory, text *utils.TextProcessor) core.MessageParser {
		return f.CreateMessageParser(text)
	}); err != nil {
		return err
	}

	// Register reply service
	return container.Provide(core.NewReplyService)
}
