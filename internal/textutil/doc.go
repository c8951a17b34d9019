// Package textutil provides text helpers shared by the adapters: rune-safe
// truncation, whitespace collapsing, and Unicode case-folded matching.
//
// Matching uses full Unicode case folding (golang.org/x/text/cases) rather
// than strings.ToLower so that German labels such as "Öffentliche Ordnung"
// match model output regardless of casing, including ß/SS variants.
package textutil
