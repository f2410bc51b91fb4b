// Package logx configures postdeck's structured logging.
//
// The wrapper (logx.Logger) sits on top of zerolog and keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - An optional alert sink (min-level + rate limiting) that forwards
//     warnings to an operator channel such as Slack or Telegram
package logx
