package daemonrun

import (
	"fmt"
	"log/slog"

	"weft/internal/account"
	"weft/internal/authz"
	"weft/internal/config"
	"weft/internal/endpoint"
	"weft/internal/journal"
	"weft/internal/lifecycle"
	"weft/internal/notifications"
	"weft/internal/token"
	"weft/internal/worker"
)

// Components bundles the account service collaborators built from configuration.
type Components struct {
	Settings worker.Settings
	Client   *account.Client
	Resolver *endpoint.Resolver
	Claimer  *lifecycle.Claimer
	Reporter *lifecycle.Reporter
	// Tokens is nil when no token secret is configured.
	Tokens *token.Signer
}

// NewComponents wires the account client, resolver, claimer, and reporter.
func NewComponents(cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	settings, err := worker.SettingsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	client := account.NewClient(account.Config{URL: cfg.Account.URL, Timeout: cfg.AccountTimeout()})
	components := &Components{
		Settings: settings,
		Client:   client,
		Resolver: endpoint.NewResolver(client, endpoint.WithLogger(logger)),
		Claimer:  lifecycle.NewClaimer(client, settings.Token, settings.Region, settings.Version, settings.Operation),
		Reporter: lifecycle.NewReporter(client, settings.Token, settings.Version),
	}
	if cfg.Account.TokenSecret != "" {
		signer, err := token.NewSigner(cfg.Account.TokenSecret, cfg.Account.SystemEmail)
		if err != nil {
			return nil, fmt.Errorf("account.token_secret: %w", err)
		}
		components.Tokens = signer
	}
	return components, nil
}

// NewCoordinator builds the worker coordinator backed by the given journal.
func NewCoordinator(cfg *config.Config, store *journal.Store, logger *slog.Logger, sessionID string) (*worker.Coordinator, error) {
	components, err := NewComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	executor, err := worker.NewCommandExecutor(cfg.Worker.Command, logger)
	if err != nil {
		return nil, err
	}
	opts := []worker.Option{
		worker.WithJournal(store),
		worker.WithNotifier(notifications.NewService(cfg)),
		worker.WithAuthorizers(authz.NewRegistry()),
		worker.WithLogger(logger),
		worker.WithSessionID(sessionID),
	}
	if components.Tokens != nil {
		opts = append(opts, worker.WithTokenSource(components.Tokens))
	}
	return worker.New(
		components.Settings,
		components.Claimer,
		components.Resolver,
		components.Reporter,
		executor,
		opts...,
	), nil
}
