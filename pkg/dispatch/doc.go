// Package dispatch drives marketplace operations through the resource store.
//
// Every operation follows the same three-phase machine regardless of the
// resource it targets:
//
//	Dispatch(op)
//	    │  store.Begin: loading=true, error cleared        (pending)
//	    ▼
//	client.Send ── success ──► store.Settle: success, message, apply result
//	    │
//	    └────────── failure ──► store.Settle: error=normalized message
//
// A failed operation never touches the collection. Local preconditions, such
// as refusing to delete the last address, reject before the API is called and
// surface exactly like API errors.
//
// Each dispatch takes a token from the store. When two dispatches of the same
// resource and category overlap, only the newest one owns the status; an
// older fetch response is dropped, an older mutation response still applies
// its confirmed change to the collection. Responses that predate a Reset are
// always dropped.
//
// Side effects of a fulfilled operation (persisting a session token, for
// example) are never run by the dispatcher. They are returned in
// Result.Effects for the caller to execute with RunEffects.
package dispatch
