// Package gateway exposes the OpenAI-compatible HTTP API and ties the
// rest of the system together.
//
// POST /v1/chat/completions validates the request, resolves the session
// and project, hands the prompt to the process supervisor, and returns
// either a single aggregated response or an SSE stream of completion
// chunks. Streams open with an assistant role chunk, carry a bounded
// number of content deltas, and always terminate with a finish_reason
// chunk and a [DONE] frame; heartbeat comments keep the connection
// alive while the backing run is in flight.
//
// The package also serves the models catalog, the sessions and projects
// extension APIs, and the health probe.
package gateway
