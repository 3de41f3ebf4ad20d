// Package notification delivers best-effort email about ticket events over
// SMTP. Sends never block the caller and never fail the operation that
// triggered them.
package notification
