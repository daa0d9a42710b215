// Package client is the client side of the command channel.
//
// A [Pipeline] wraps every API call. After any response arrives it hands the
// response's directive to the [Interpreter] before returning the response to
// the call site, so no caller has to remember to do it. Each [Response] is
// processed at most once, and responses are applied in the order they
// arrive, not the order their requests were issued.
//
// The [Interpreter] dispatches through a closed handler table:
//
//	Navigate   -> Navigator.Navigate(path)
//	MergeState -> Registry[store].Merge(patch)
//	ClearState -> Registry[store].Clear()
//	Notify     -> Notifier.Notify(level, text)
//
// Unknown kinds are logged and skipped. Failures are reported through an
// optional [ErrorReporter] and never withhold the response's data.
package client
