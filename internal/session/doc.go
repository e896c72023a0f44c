// Package session tracks live chat sessions in memory on top of the
// persistent store.
//
// The Manager keeps an index of Active sessions keyed by id. Sessions
// not present in memory are lazily rehydrated from the store on access,
// so the gateway survives restarts without losing session continuity.
// A background sweeper ends sessions that sit idle past a configured
// timeout, and Stats summarizes the active set for the monitoring
// endpoints.
package session
