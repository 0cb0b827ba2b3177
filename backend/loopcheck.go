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
	"hash/fnv"
	"strings"
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// LoopCheckState is the processing phase of a loop-check entry.
type LoopCheckState int

const (
	// LoopCheckPending is a fresh entry waiting for the next flush.
	LoopCheckPending LoopCheckState = iota + 1
	// LoopCheckMerged is an entry that absorbed another one with the same key.
	LoopCheckMerged
	// LoopCheckIgnored is an entry whose marker is already set on the remote session.
	LoopCheckIgnored
)

func (s LoopCheckState) String() string {
	switch s {
	case LoopCheckPending:
		return "pending"
	case LoopCheckMerged:
		return "merged"
	case LoopCheckIgnored:
		return "ignored"
	}
	return fmt.Sprintf("LoopCheckState(%d)", int(s))
}

const markerPrefix = "fedlink_lc_"

// MarkerName returns the user variable carrying the loop marker of table.
func MarkerName(table string) string {
	var b strings.Builder
	b.WriteString(markerPrefix)
	for _, r := range strings.ToLower(table) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// IsMarkerName reports whether the user variable name is a loop marker.
func IsMarkerName(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), markerPrefix)
}

func hashName(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(name)))
	return h.Sum64()
}

// LoopCheckEntry is a probe from the current federated table toward a
// remote target table.
type LoopCheckEntry struct {
	State       LoopCheckState
	TargetHash  uint64
	CurrentName string
	TargetName  string
	// From is the marker received from upstream.
	From string
	// Merged is the outgoing marker, the tokens of every merged probe.
	Merged string
}

// NewLoopCheckEntry builds the probe of current toward target, token is
// this node's token for current.
func NewLoopCheckEntry(current, target, from, token string) *LoopCheckEntry {
	return &LoopCheckEntry{
		State:       LoopCheckPending,
		TargetHash:  hashName(target),
		CurrentName: current,
		TargetName:  target,
		From:        from,
		Merged:      mergeTokens(token, from),
	}
}

// Key returns the composite deduplication key.
func (e *LoopCheckEntry) Key() string {
	return e.From + "|" + e.CurrentName + "|" + e.TargetName
}

// splitTokens splits a marker into its bracketed tokens.
func splitTokens(marker string) []string {
	var tokens []string
	for {
		start := strings.IndexByte(marker, '[')
		if start < 0 {
			return tokens
		}
		end := strings.IndexByte(marker[start:], ']')
		if end < 0 {
			return tokens
		}
		tokens = append(tokens, marker[start:start+end+1])
		marker = marker[start+end+1:]
	}
}

// mergeTokens appends to a the tokens of b it does not hold yet.
func mergeTokens(a, b string) string {
	var buf strings.Builder
	buf.WriteString(a)
	for _, token := range splitTokens(b) {
		if !strings.Contains(buf.String(), token) {
			buf.WriteString(token)
		}
	}
	return buf.String()
}

type sentMarker struct {
	name  string
	value string
}

// LoopChecks holds the loop-check entries of one connection.
type LoopChecks struct {
	mu sync.Mutex
	// composite key -> *LoopCheckEntry, in insertion order.
	pending *linkedhashmap.Map
	// target hash -> marker set on the remote session.
	sent map[uint64]sentMarker
}

// NewLoopChecks creates a new LoopChecks.
func NewLoopChecks() *LoopChecks {
	return &LoopChecks{
		pending: linkedhashmap.New(),
		sent:    make(map[uint64]sentMarker),
	}
}

// QueueAndMerge submits entry. An entry whose marker is already set on the
// session becomes ignored and is returned as is. An entry whose composite key
// is pending is merged into the pending one, which is returned. Otherwise
// entry is stored as pending.
func (lc *LoopChecks) QueueAndMerge(entry *LoopCheckEntry) *LoopCheckEntry {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if sent, ok := lc.sent[entry.TargetHash]; ok && sent.value == entry.Merged {
		entry.State = LoopCheckIgnored
		return entry
	}

	if v, ok := lc.pending.Get(entry.Key()); ok {
		stored := v.(*LoopCheckEntry)
		stored.Merged = mergeTokens(stored.Merged, entry.Merged)
		stored.State = LoopCheckMerged
		return stored
	}
	entry.State = LoopCheckPending
	lc.pending.Put(entry.Key(), entry)
	return entry
}

// MarkerValue returns the marker to send for the target hash: the tokens
// of every pending entry toward it, or the marker already sent.
func (lc *LoopChecks) MarkerValue(targetHash uint64) string {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.markerValue(targetHash)
}

func (lc *LoopChecks) markerValue(targetHash uint64) string {
	value, found := "", false
	lc.pending.Each(func(_ interface{}, v interface{}) {
		e := v.(*LoopCheckEntry)
		if e.TargetHash == targetHash {
			value = mergeTokens(value, e.Merged)
			found = true
		}
	})
	if !found {
		return lc.sent[targetHash].value
	}
	return value
}

// Resolve records the pending markers as sent, called after a successful flush.
func (lc *LoopChecks) Resolve() {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	values := make(map[uint64]sentMarker)
	lc.pending.Each(func(_ interface{}, v interface{}) {
		e := v.(*LoopCheckEntry)
		if _, ok := values[e.TargetHash]; !ok {
			values[e.TargetHash] = sentMarker{
				name:  MarkerName(e.TargetName),
				value: lc.markerValue(e.TargetHash),
			}
		}
	})
	for hash, marker := range values {
		lc.sent[hash] = marker
	}
	lc.pending.Clear()
}

// Reset drops the pending entries and returns the marker names they used.
func (lc *LoopChecks) Reset() []string {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	var names []string
	seen := make(map[string]bool)
	lc.pending.Each(func(_ interface{}, v interface{}) {
		name := MarkerName(v.(*LoopCheckEntry).TargetName)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	})
	lc.pending.Clear()
	return names
}

// ResetSession forgets the markers set on the session and returns their
// names, the caller resets them on the remote side.
func (lc *LoopChecks) ResetSession() []string {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	names := make([]string, 0, len(lc.sent))
	for _, marker := range lc.sent {
		if marker.value != "" {
			names = append(names, marker.name)
		}
	}
	lc.sent = make(map[uint64]sentMarker)
	lc.pending.Clear()
	return names
}

// Get returns the pending entry of the composite key.
func (lc *LoopChecks) Get(key string) (*LoopCheckEntry, bool) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if v, ok := lc.pending.Get(key); ok {
		return v.(*LoopCheckEntry), true
	}
	return nil, false
}

// Entries returns the pending entries in insertion order.
func (lc *LoopChecks) Entries() []*LoopCheckEntry {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	entries := make([]*LoopCheckEntry, 0, lc.pending.Size())
	for _, v := range lc.pending.Values() {
		entries = append(entries, v.(*LoopCheckEntry))
	}
	return entries
}

// Len returns the number of pending entries.
func (lc *LoopChecks) Len() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.pending.Size()
}

// Clear drops everything.
func (lc *LoopChecks) Clear() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.pending.Clear()
	lc.sent = make(map[uint64]sentMarker)
}
