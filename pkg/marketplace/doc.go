// Package marketplace wires the farm-to-customer resources onto the generic
// dispatcher.
//
// A Marketplace is built from an immutable config.Config. It owns the API
// client, the resource store and the dispatcher, registers the resources
// visible to the current role, and implements the session flows (login,
// logout, role switch) on top of them.
package marketplace
