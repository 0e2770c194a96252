// Package transport fetches resources for the gateway.
//
// HTTP is the default and only speaks net/http. Browser renders documents in
// headless Chromium through go-rod. Selector combines the two and is chosen
// when JavaScript is enabled. All implementations report failures as an
// empty Response rather than an error.
package transport
