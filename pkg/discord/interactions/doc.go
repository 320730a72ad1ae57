// Package interactions authenticates inbound Discord interaction webhooks and
// decodes their payloads.
//
// Discord signs every request with the application's Ed25519 key over the
// concatenation of the X-Signature-Timestamp header and the raw body. Nothing
// in a request may be trusted until Verify has returned true for it.
package interactions
