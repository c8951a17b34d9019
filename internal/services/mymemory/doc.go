// Package mymemory is a client for the MyMemory translation API
// (GET /get?q=...&langpair=de-DE|en-GB).
//
// The free tier enforces a daily character quota. MyMemory signals exhaustion
// in several ways (HTTP 429, responseStatus 429, quotaFinished, or a
// "MYMEMORY WARNING" text in place of the translation); all of them are
// reported as services.ErrQuotaExceeded. Supplying an email raises the quota.
package mymemory
