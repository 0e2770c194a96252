// Package profile decides how each host is accessed.
//
// A Profile carries the pacing algorithm, the request headers and the
// visited and waiting link sets of one host. The Registry hands profiles out
// by fqdn, falling back to the base domain's profile, and serves as the
// gateway's pacer, the transport's header source and the JavaScript trust
// table.
package profile
