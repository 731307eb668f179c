// Package permission asks the platform for notification permission once per
// process and remembers the answer.
//
// The Gate is shared across identity changes: after the first decision every
// Ensure call returns the cached state without prompting. Concurrent callers
// that arrive while the prompt is open all wait on that same prompt.
//
// A platform that fails to answer is treated as Denied for the rest of the
// process. Nothing retries it; a platform-reported change can be fed in with
// Observe.
package permission
