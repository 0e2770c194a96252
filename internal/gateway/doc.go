// Package gateway admits, paces and dispatches every request the crawler makes.
//
// A submitted link moves through these states:
//
//	Submitted -> Validated -> HttpsNormalized -> SecurityChecked ->
//	RobotsChecked -> Enqueued -> Dequeued -> Dispatched -> Responded
//
// Links are queued per fully qualified domain name with the delay the Pacer
// returns for it, and ProcessQueue dispatches ready entries one at a time so
// no host sees two requests closer together than its delay. ExpressRequest
// skips the queue and serves single urgent fetches such as robots.txt.
package gateway
