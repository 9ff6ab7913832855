// Package processing is the HTTP client for the remote content-processing
// service. It exposes three request/response calls: Normalize uploads a
// document and returns the rewritten content, Embed asks the service to index
// a stored object, and Search runs a similarity query.
//
// The client never retries. Any non-2xx response becomes a
// *RemoteProcessingError carrying the status code and a prefix of the body.
// IsTransient classifies errors for callers that want to retry.
//
// Every call carries the W3C trace context of its ctx and runs under the
// http.Client timeout configured at construction.
package processing
