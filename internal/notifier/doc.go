// Package notifier delivers operator notifications: failed posts, failed
// retries and warn+ log records.
//
// # Pipeline
//
// Notify enqueues without blocking. A small worker pool drains the queue
// through a token-bucket rate limit, retries failed sends with exponential
// backoff and suppresses duplicates inside a dedup window.
//
// # Senders
//
// Delivery goes through a Sender: Slack (chat.postMessage), Telegram
// (Bot API sendMessage) or the log sink used when no chat is configured.
package notifier
