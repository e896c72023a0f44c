// Package supervisor manages Claude Code CLI processes.
//
// Each conversation turn runs one CLI invocation to completion. The process
// writes stream-json output to stdout; the supervisor buffers the full
// stream, splits it on line boundaries after exit, and parses each line into
// a typed event in emission order.
//
// A single Supervisor instance enforces the global concurrency bound. The
// check-and-register step is atomic, so the bound is never transiently
// exceeded; when it is hit, Run fails immediately with ErrCapacityExceeded
// rather than queueing.
//
// Stopping a session cancels its invocation context. The OS runner
// translates that into SIGTERM followed, after the configured grace period,
// by SIGKILL.
package supervisor
