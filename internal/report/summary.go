package report

import (
	"time"
)

// Stop reasons recorded in a Summary.
const (
	StopQueueEmpty = "queue empty"
	StopDeadline   = "run duration exceeded"
	StopCancelled  = "cancelled"
	StopFailed     = "failed"
)

// DomainCount is the number of requests sent to one host.
type DomainCount struct {
	// FQDN is the host name.
	FQDN string `json:"fqdn"`

	// Site is the registrable domain the host belongs to.
	Site string `json:"site"`

	// Requests is the number of dispatched links.
	Requests int `json:"requests"`
}

// KeywordHit lists the archived pages whose text matched a keyword.
type KeywordHit struct {
	Keyword   string   `json:"keyword"`
	Locations []string `json:"locations"`
}

// Summary describes one crawl run.
type Summary struct {
	RunID          string        `json:"run_id"`
	Started        time.Time     `json:"started"`
	Finished       time.Time     `json:"finished"`
	Seeds          []string      `json:"seeds"`
	Keywords       []string      `json:"keywords,omitempty"`
	Domains        []DomainCount `json:"domains"`
	Sites          []DomainCount `json:"sites"`
	Hits           []KeywordHit  `json:"hits,omitempty"`
	Visited        []string      `json:"visited"`
	Responses      int           `json:"responses"`
	EmptyResponses int           `json:"empty_responses"`
	Stopped        string        `json:"stopped"`
	Error          string        `json:"error,omitempty"`
}

// TotalRequests returns the number of dispatched links across all hosts.
func (s *Summary) TotalRequests() int {
	total := 0
	for _, d := range s.Domains {
		total += d.Requests
	}
	return total
}

// TotalHits returns the number of keyword matches.
func (s *Summary) TotalHits() int {
	total := 0
	for _, h := range s.Hits {
		total += len(h.Locations)
	}
	return total
}

// Duration returns how long the run took.
func (s *Summary) Duration() time.Duration {
	if s.Finished.Before(s.Started) {
		return 0
	}
	return s.Finished.Sub(s.Started).Round(time.Second)
}
