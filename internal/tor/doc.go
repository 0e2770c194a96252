// Package tor routes crawler traffic through a SOCKS5 proxy.
//
// A Client wraps an existing proxy such as a local Tor daemon. A Daemon starts
// a private Tor process with tornago and hands out Clients for it. The HTTP
// transport uses Client.Transport when a proxy is configured.
package tor
