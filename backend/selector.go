/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package backend

import (
	"fmt"
	"sync"

	"github.com/radondb/fedlink/config"

	"github.com/pkg/errors"
)

// NoLink is the link index meaning no eligible link.
const NoLink = -1

// LinkStatus is the health of a link, ordered from best to worst.
type LinkStatus int32

const (
	// LinkActive is a healthy link.
	LinkActive LinkStatus = iota + 1
	// LinkRecovery is a link only selected when no active link is left.
	LinkRecovery
	// LinkDisabled is a link never selected.
	LinkDisabled
)

func (s LinkStatus) String() string {
	switch s {
	case LinkActive:
		return config.LinkStatusActive
	case LinkRecovery:
		return config.LinkStatusRecovery
	case LinkDisabled:
		return config.LinkStatusDisabled
	}
	return fmt.Sprintf("LinkStatus(%d)", int32(s))
}

// ParseLinkStatus parses the status string of the config.
func ParseLinkStatus(s string) (LinkStatus, error) {
	switch s {
	case config.LinkStatusActive, "":
		return LinkActive, nil
	case config.LinkStatusRecovery:
		return LinkRecovery, nil
	case config.LinkStatusDisabled:
		return LinkDisabled, nil
	}
	return 0, errors.Errorf("unknown.link.status[%s]", s)
}

// eligible reports whether a link of status s satisfies required.
func (s LinkStatus) eligible(required LinkStatus) bool {
	return s != LinkDisabled && s <= required
}

// GetLinkStatus returns the status of link idx, disabled when out of range.
func GetLinkStatus(statuses []LinkStatus, idx int) LinkStatus {
	if idx < 0 || idx >= len(statuses) {
		return LinkDisabled
	}
	return statuses[idx]
}

// FirstEligibleLink returns the first link whose status satisfies required,
// scanning from index 0, or NoLink.
func FirstEligibleLink(statuses []LinkStatus, weights []int, count int, required LinkStatus) int {
	if count <= 0 {
		return NoLink
	}
	return NextEligibleLink(statuses, weights, count, count-1, required)
}

// NextEligibleLink returns the next link after current, circularly, whose
// status satisfies required, or NoLink. When any eligible link carries a
// positive weight, zero-weight links are skipped. The result is a pure
// function of its arguments.
func NextEligibleLink(statuses []LinkStatus, weights []int, count int, current int, required LinkStatus) int {
	if count <= 0 {
		return NoLink
	}
	if count > len(statuses) {
		count = len(statuses)
	}

	weighted := false
	for i := 0; i < count; i++ {
		if statuses[i].eligible(required) && weightOf(weights, i) > 0 {
			weighted = true
			break
		}
	}

	start := current
	if start < 0 || start >= count {
		start = count - 1
	}
	for step := 1; step <= count; step++ {
		idx := (start + step) % count
		if !statuses[idx].eligible(required) {
			continue
		}
		if weighted && weightOf(weights, idx) <= 0 {
			continue
		}
		return idx
	}
	return NoLink
}

func weightOf(weights []int, idx int) int {
	if idx < len(weights) {
		return weights[idx]
	}
	return 1
}

// Balancer spreads the selections over the eligible links by their
// weights, smooth weighted round-robin. It is safe for concurrent use.
type Balancer struct {
	mu      sync.Mutex
	current []int
}

// NewBalancer creates a balancer over count links.
func NewBalancer(count int) *Balancer {
	return &Balancer{current: make([]int, count)}
}

// Pick returns the link to use among those satisfying required, or NoLink.
// A link with a weight of zero is picked only when no weighted link is eligible.
func (b *Balancer) Pick(statuses []LinkStatus, weights []int, required LinkStatus) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := len(statuses)
	if count > len(b.current) {
		b.current = append(b.current, make([]int, count-len(b.current))...)
	}

	best, total := NoLink, 0
	for i := 0; i < count; i++ {
		if !statuses[i].eligible(required) {
			continue
		}
		w := weightOf(weights, i)
		if w <= 0 {
			continue
		}
		b.current[i] += w
		total += w
		if best == NoLink || b.current[i] > b.current[best] {
			best = i
		}
	}
	if best == NoLink {
		return FirstEligibleLink(statuses, weights, count, required)
	}
	b.current[best] -= total
	return best
}
