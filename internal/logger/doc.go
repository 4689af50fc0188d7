// Package logger wraps zap for the packager:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level parsing for the --log-level flag.
//
// Pipeline steps receive a context and log through it, so every line
// carries the run name and run ID.
package logger
