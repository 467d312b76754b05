// Package logger builds *slog.Logger instances for the gateway and provides
// attribute helpers so every component names its fields the same way.
//
// New applies functional options (format, level, output, static attributes,
// context extractors) and wraps the chosen handler with LogHandlerDecorator,
// which pulls request-scoped values such as the request id out of the context
// on every emitted record.
//
// Usage:
//
//	log := logger.New(
//		logger.WithEnvironment("production", "authgate"),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "magic link dispatched",
//		logger.Component("login"),
//		logger.Email(addr),
//	)
package logger
