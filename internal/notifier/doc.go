// Package notifier delivers operator notifications through a transport.Sender.
//
// Notify enqueues and returns; a small worker pool drains the queue under a
// token-bucket rate limit and retries failed sends with jittered exponential
// backoff. An optional in-memory dedup window suppresses identical messages.
//
// A short history of delivered messages is kept for /status.
package notifier
