// Package translate adapts a text translator to the en_title field.
//
// TranslateBatch splits its input into chunks (50 by default) and pauses
// between chunks (2s by default) to stay under the translation service's
// rate limit. It returns the translated prefix together with the first error
// so the caller can keep partial progress.
package translate
