/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package backend

import (
	"sync/atomic"

	"github.com/radondb/fedlink/config"
	"github.com/radondb/fedlink/monitor"
)

// Link is one remote endpoint serving a shard.
type Link struct {
	index    int
	conf     *config.LinkConfig
	status   atomic.Int32
	failures atomic.Int32
	// byMonitor is set when the current status was decided by a probe,
	// an administrative status is never overridden by the monitor.
	byMonitor atomic.Bool
}

func newLink(index int, conf *config.LinkConfig) *Link {
	l := &Link{index: index, conf: conf}
	status, err := ParseLinkStatus(conf.Status)
	if err != nil {
		status = LinkDisabled
	}
	l.status.Store(int32(status))
	return l
}

// Index returns the position of the link in its shard.
func (l *Link) Index() int {
	return l.index
}

// Conf returns the link config.
func (l *Link) Conf() *config.LinkConfig {
	return l.conf
}

// Address returns the remote address.
func (l *Link) Address() string {
	return l.conf.Address
}

// Status returns the current status.
func (l *Link) Status() LinkStatus {
	return LinkStatus(l.status.Load())
}

// Weight returns the configured weight.
func (l *Link) Weight() int {
	return l.conf.Weight
}

// LinkSet is the ordered list of links of one shard.
type LinkSet struct {
	table    string
	shard    string
	links    []*Link
	balancer *Balancer
}

// NewLinkSet creates the link set of shard from its configs.
func NewLinkSet(table, shard string, confs []*config.LinkConfig) *LinkSet {
	set := &LinkSet{
		table:    table,
		shard:    shard,
		links:    make([]*Link, len(confs)),
		balancer: NewBalancer(len(confs)),
	}
	for i, conf := range confs {
		set.links[i] = newLink(i, conf)
		monitor.LinkStatusSet(table, shard, conf.Address, int(set.links[i].Status()))
	}
	return set
}

// Len returns the number of links.
func (s *LinkSet) Len() int {
	return len(s.links)
}

// Link returns the idx-th link, nil when out of range.
func (s *LinkSet) Link(idx int) *Link {
	if idx < 0 || idx >= len(s.links) {
		return nil
	}
	return s.links[idx]
}

// Links returns all the links.
func (s *LinkSet) Links() []*Link {
	return s.links
}

// Statuses returns a snapshot of the link statuses.
func (s *LinkSet) Statuses() []LinkStatus {
	statuses := make([]LinkStatus, len(s.links))
	for i, l := range s.links {
		statuses[i] = l.Status()
	}
	return statuses
}

// Weights returns the link weights.
func (s *LinkSet) Weights() []int {
	weights := make([]int, len(s.links))
	for i, l := range s.links {
		weights[i] = l.Weight()
	}
	return weights
}

// Select returns the link to use: an active one if any, else a link
// under recovery, else LinkExhausted.
func (s *LinkSet) Select() (int, error) {
	statuses, weights := s.Statuses(), s.Weights()
	for _, required := range []LinkStatus{LinkActive, LinkRecovery} {
		if idx := s.balancer.Pick(statuses, weights, required); idx != NoLink {
			return idx, nil
		}
	}
	return NoLink, s.exhausted()
}

// Failover returns the next eligible link after from, NoLink if the only
// eligible link is from itself.
func (s *LinkSet) Failover(from int) (int, error) {
	statuses, weights := s.Statuses(), s.Weights()
	for _, required := range []LinkStatus{LinkActive, LinkRecovery} {
		idx := NextEligibleLink(statuses, weights, len(statuses), from, required)
		if idx != NoLink && idx != from {
			return idx, nil
		}
	}
	return NoLink, s.exhausted()
}

func (s *LinkSet) exhausted() error {
	return newError(KindLinkExhausted, nil, "no.eligible.link").at(s.table, s.shard, NoLink)
}

// SetStatus sets the status of link idx by an administrator.
func (s *LinkSet) SetStatus(idx int, status LinkStatus) bool {
	l := s.Link(idx)
	if l == nil {
		return false
	}
	l.byMonitor.Store(false)
	l.failures.Store(0)
	s.store(l, status)
	return true
}

// probed records the result of a health probe on link idx and returns the
// new status. A failing active link falls to recovery, and is disabled after
// maxFailures consecutive failures. A link disabled by an administrator is
// left alone.
func (s *LinkSet) probed(idx int, ok bool, maxFailures int) LinkStatus {
	l := s.Link(idx)
	if l == nil {
		return LinkDisabled
	}
	cur := l.Status()
	if cur == LinkDisabled && !l.byMonitor.Load() {
		return cur
	}

	if ok {
		l.failures.Store(0)
		if cur != LinkActive {
			l.byMonitor.Store(true)
			s.store(l, LinkActive)
		}
		return LinkActive
	}

	failures := int(l.failures.Add(1))
	next := LinkRecovery
	if maxFailures > 0 && failures >= maxFailures {
		next = LinkDisabled
	}
	if next != cur {
		l.byMonitor.Store(true)
		s.store(l, next)
	}
	return next
}

func (s *LinkSet) store(l *Link, status LinkStatus) {
	l.status.Store(int32(status))
	monitor.LinkStatusSet(s.table, s.shard, l.Address(), int(status))
}
