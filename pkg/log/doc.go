/*
Package log provides structured logging for the Dispatch Engine using zerolog.

A single global Logger is configured once via Init and handed out as
component- and request-scoped child loggers (WithComponent, WithWorkerID,
WithAttempt) so every log line carries enough context to follow one worker's
placement across retries without grepping for a bare string.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	l := log.WithComponent("placement")
	l.Debug().Str("worker_id", w).Int("attempt", 1).Msg("assigning executor")

Use WithAttempt in the placement pipeline specifically: it bundles the two
fields (worker_id, attempt) that every transition log line needs, so handlers
don't repeat both calls at each state.

Errors are always logged with .Err(err), never interpolated into the message
string, so log aggregation can filter on the error field directly.
*/
package log
