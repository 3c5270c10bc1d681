// Package resource holds the client-side state of marketplace resources.
//
// A Store keeps one Collection per registered resource ("addresses",
// "farms", "orders", ...) together with an operation Status per Category
// (fetch-all, create, update, ...). The dispatch package is the only writer:
// it drives every operation through pending, fulfilled or rejected and calls
// the Apply* and Settle entry points below. Readers take snapshots.
//
// Core Types:
//
//   - Entity: one record, identified by an API-assigned ID plus opaque fields
//   - Collection: ordered items unique by ID, and an optional selected entity
//   - Status: loading / error / success / message for one category
//   - Store: the shared, mutex-guarded container for all of the above
//
// Thread Safety:
//
// All Store methods are safe for concurrent use. Phase transitions happen
// under a single write lock so readers never observe a half-applied result.
// Listeners registered with Subscribe run after the lock is released; a store
// without listeners is fully functional.
//
// Usage:
//
//	store := resource.NewStore()
//	store.Register("addresses")
//
//	tok, _ := store.Begin("addresses", resource.FetchAll)
//	store.Settle("addresses", resource.FetchAll, tok, resource.Outcome{
//		Patch:  resource.Fulfilled("Loaded addresses"),
//		Mutate: func(c *resource.Collection) { c.ReplaceItems(items) },
//	})
//
//	snap := store.Collection("addresses")
//	st := store.Status("addresses", resource.FetchAll)
package resource
