// Package config holds the operator configuration of webchecks: the flat
// Config populated from CLI flags, the optional .webchecks.yaml file with the
// admission policy and per-domain overrides, and the XDG directories used
// for results and the cache.
package config
