// Package logger builds the *slog.Logger instances used across the module and
// provides attribute helpers so that the notification queue, run loop and
// response cache log with consistent keys.
//
// New creates a logger from functional options: output format (text or json),
// minimum level, static attributes, and ContextExtractor callbacks that pull
// request-scoped values out of context.Context on every record.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithDevelopment("edge-cache"),
//	    logger.WithContextValue("request_id", ctxKeyRequestID),
//	)
//	logger.SetAsDefault(log)
//
//	log.LogAttrs(ctx, slog.LevelDebug, "entry demoted",
//	    logger.CacheKey(key),
//	    logger.Tier("disk"),
//	    logger.Size(n),
//	)
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
package logger
