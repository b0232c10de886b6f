// Package logger provides structured logging utilities built on Go's standard slog package:
// a constructor with environment presets and a set of attribute helpers.
//
// # Basic Usage
//
//	import "github.com/dmitrymomot/realtime/core/logger"
//
//	// Development: text format, debug level, source locations
//	log := logger.New(logger.WithDevelopment("streamtail"))
//
//	// Production: JSON format, info level
//	log := logger.New(
//		logger.WithProduction("streamtail"),
//		logger.WithLevel(logger.ParseLevel(os.Getenv("LOG_LEVEL"))),
//	)
//
//	log.Info("stream connected",
//		logger.Component("stream.producer"),
//		logger.Endpoint(endpoint),
//		logger.Cursor(cursor),
//	)
//
// Components never reach for a global logger. They accept a *slog.Logger through an
// option and default to a discard logger (see Discard).
//
// # Attribute Helpers
//
// Helpers return an empty slog.Attr for zero values, which slog drops, so they can be
// passed unconditionally:
//
//	log.Error("message dropped",
//		logger.Error(err),   // omitted when err is nil
//		logger.Kind(kind),   // omitted when kind is empty
//		logger.Event("put"),
//	)
//
//	log.Warn("shutdown incomplete", logger.Errors(producerErr, dispatcherErr))
package logger
