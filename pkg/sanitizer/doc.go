// Package sanitizer normalizes free-text input before validation and storage.
//
// All functions are idempotent and never fail; invalid input degrades to an
// empty string or is dropped from a slice.
//
// Normalization includes:
//   - Names: collapse whitespace, trim
//   - Emails: trim, lowercase
//   - Slot text: collapse whitespace so "2025-06-01   at 09:00" reads as display format
//   - Slices: remove duplicates and empty values after normalization
package sanitizer
