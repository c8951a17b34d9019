// Package llm provides a client for OpenAI-compatible chat completion
// endpoints, used to categorize police reports.
//
// The default endpoint is a local Ollama server, which needs no API key. An
// OpenRouter endpoint works the same way once api_key is set; referer and
// title are forwarded as the OpenRouter attribution headers.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send a prompt, receive the plain-text reply.
// Client.HealthCheck: verify the endpoint and model respond.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty replies, and network
// timeouts with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default), honouring Retry-After. Context cancellation aborts retries
// immediately.
//
// # Error Classification
//
// Once retries are spent, HTTP 402 and 429 are reported as
// services.ErrQuotaExceeded so the enrichment driver stops calling the model
// for the rest of the run. Everything else is services.ErrTransient and
// results in a per-row fallback.
package llm
