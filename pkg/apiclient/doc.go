// Package apiclient is the HTTP client for the marketplace REST API.
//
// Every call goes through Client.Send, which returns the API's response
// envelope ({"success", "data", "message"}) or an error. HTTP failures come
// back as *APIError carrying the status code and the raw body so callers can
// pull a message out of whatever error shape the server produced.
//
// Responses that are not wrapped in an envelope (a bare object or array) are
// treated as successful with the whole body as Data.
package apiclient
