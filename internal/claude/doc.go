// Package claude models the line-delimited stream-json output of the Claude
// Code CLI.
//
// # Event Model
//
// Each line of CLI output is one JSON object tagged by a "type" field. The
// Event struct covers every kind the CLI emits (system, user, assistant,
// result, error, tool_use, tool_result) plus a sentinel "text" kind the
// parser uses when a line is not valid JSON.
//
// # Parser
//
// Parser consumes lines one at a time and accumulates running usage totals
// (tokens, cost, message count). It also pins the session id and model to
// the first event that reports them; later conflicting values are ignored.
// Malformed lines never fail a parse: they become text sentinels and are
// logged as warnings.
//
// # Extraction
//
// ExtractText, ExtractToolUses and ExtractToolResults are pure functions
// over a parsed Event. Message content arrives either as a bare string or
// as a list of typed content parts; both shapes are handled.
package claude
