package notify

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/loekd/MissionCriticalDemo/internal/storage/pebble"
)

// Journal keyspace (byte-wise, lexicographically sortable):
// - notify/m            next sequence (be8)
// - notify/e/{seq_be8}  encoded entry
//
// Entry encoding: varint headerLen | header | payload | crc32c(header|payload)
// where header is the 8-byte big-endian append time in ms.

var (
	journalMetaKey    = []byte("notify/m")
	journalEntrySeg   = []byte("notify/e/")
	journalCastagnoli = crc32.MakeTable(crc32.Castagnoli)
)

func keyJournalEntry(seq uint64) []byte {
	k := make([]byte, 0, len(journalEntrySeg)+8)
	k = append(k, journalEntrySeg...)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return append(k, b[:]...)
}

func encodeEntry(header, payload []byte) []byte {
	out := make([]byte, 0, 10+len(header)+len(payload)+4)
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(header)))
	out = append(out, tmp[:n]...)
	out = append(out, header...)
	out = append(out, payload...)

	crc := crc32.Update(0, journalCastagnoli, header)
	crc = crc32.Update(crc, journalCastagnoli, payload)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	return append(out, crcb[:]...)
}

func decodeEntry(b []byte) (header, payload []byte, ok bool) {
	if len(b) < 1+4 {
		return nil, nil, false
	}
	hlen, n := binary.Uvarint(b)
	if n <= 0 || n+int(hlen)+4 > len(b) {
		return nil, nil, false
	}
	header = b[n : n+int(hlen)]
	payload = b[n+int(hlen) : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, journalCastagnoli, header)
	crc = crc32.Update(crc, journalCastagnoli, payload)
	if crc != expect {
		return nil, nil, false
	}
	return append([]byte(nil), header...), append([]byte(nil), payload...), true
}

// Entry is one replayable journal record.
type Entry struct {
	Seq     uint64
	At      time.Time
	Payload []byte
}

// Journal is the append-only durable record of broadcast updates.
type Journal struct {
	db *pebblestore.DB

	mu   sync.Mutex
	next uint64
}

// OpenJournal restores the next sequence from the store.
func OpenJournal(db *pebblestore.DB) (*Journal, error) {
	j := &Journal{db: db, next: 1}
	b, err := db.Get(journalMetaKey)
	switch {
	case errors.Is(err, pebblestore.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("read journal meta: %w", err)
	case len(b) == 8:
		j.next = binary.BigEndian.Uint64(b)
	}
	return j, nil
}

// Append stores the payload and returns its assigned sequence. The entry
// and the sequence counter are committed in one batch.
func (j *Journal) Append(ctx context.Context, payload []byte) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	seq := j.next
	var header [8]byte
	binary.BigEndian.PutUint64(header[:], uint64(time.Now().UnixMilli()))

	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], seq+1)

	ops := []pebblestore.Op{
		pebblestore.PutOp(keyJournalEntry(seq), encodeEntry(header[:], payload)),
		pebblestore.PutOp(journalMetaKey, meta[:]),
	}
	if err := j.db.Apply(ctx, ops); err != nil {
		return 0, fmt.Errorf("append journal entry: %w", err)
	}
	j.next = seq + 1
	return seq, nil
}

// ReadAfter returns up to limit entries with sequence greater than after,
// oldest first. Corrupt entries are skipped.
func (j *Journal) ReadAfter(after uint64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	lower := keyJournalEntry(after + 1)
	upper := append(append([]byte(nil), journalEntrySeg...), 0xff)
	it, err := j.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []Entry
	for valid := it.First(); valid && len(out) < limit; valid = it.Next() {
		key := it.Key()
		if len(key) != len(journalEntrySeg)+8 {
			continue
		}
		seq := binary.BigEndian.Uint64(key[len(journalEntrySeg):])
		header, payload, ok := decodeEntry(it.Value())
		if !ok {
			continue
		}
		var at time.Time
		if len(header) >= 8 {
			at = time.UnixMilli(int64(binary.BigEndian.Uint64(header[:8])))
		}
		out = append(out, Entry{Seq: seq, At: at, Payload: payload})
	}
	return out, it.Error()
}

// Last returns the highest assigned sequence, 0 when empty.
func (j *Journal) Last() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.next - 1
}
