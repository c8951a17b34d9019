// Package categorize assigns one crime category to a police report by asking
// a chat model.
//
// The prompt is in German and lists every taxonomy label with its
// description. The reply is matched against the labels by case-folded
// substring, longest label first; a reply that names no label maps to the
// catch-all label.
package categorize
