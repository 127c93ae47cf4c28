package processor

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/platinummonkey/eventlens/pkg/events"
)

// dedupe keeps the first occurrence of every event in canonical order and
// returns the number of events removed. Fingerprint collisions are resolved
// with a full comparison.
func dedupe(batch events.Batch) ([]events.Event, int) {
	seen := make(map[uint64][]int, batch.Len())
	unique := make([]events.Event, 0, batch.Len())
	removed := 0

	for _, ev := range batch.All() {
		fp := fingerprint(ev)
		duplicate := false
		for _, j := range seen[fp] {
			if unique[j].Equal(ev) {
				duplicate = true
				break
			}
		}
		if duplicate {
			removed++
			continue
		}
		seen[fp] = append(seen[fp], len(unique))
		unique = append(unique, ev)
	}
	return unique, removed
}

// fingerprint hashes the identity of an event: subject, name, timestamp and
// the sorted property set.
func fingerprint(ev events.Event) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(ev.SubjectID())
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(ev.Name())
	_, _ = h.Write([]byte{0})

	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(ev.Timestamp()))
	_, _ = h.Write(ts[:])

	for _, key := range ev.PropertyKeys() {
		val, _ := ev.Property(key)
		_, _ = h.WriteString(key)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(val.Key())
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
