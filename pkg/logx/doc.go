// Package logx configures automat's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - The scheduler core decoupled from a concrete sink setup
package logx
