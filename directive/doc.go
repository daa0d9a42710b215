// Package directive defines the command channel carried by API responses.
//
// Every response body is an [Envelope]: {code, message, data, directive?}.
// The optional [Directive] names one client-side effect drawn from a closed
// set of kinds:
//
//	Navigate   {path}
//	MergeState {store, patch}
//	ClearState {store}
//	Notify     {level, text}
//
// Directives are side-channel instructions. Losing one degrades the user
// experience but never the correctness of data.
package directive
