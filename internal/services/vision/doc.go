// Package vision talks to an OpenRouter-compatible chat completion endpoint
// with a single image attached.
//
// The client sends the collage as a base64 data URL next to a text prompt and
// returns the raw text the model produced. Transient failures (HTTP 408/429/5xx,
// network timeouts, empty completions) are retried with exponential backoff
// that honours Retry-After. DecodeJSON tolerates the usual model formatting
// quirks such as Markdown code fences around the payload.
package vision
