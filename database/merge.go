package database

import (
	"container/heap"

	"github.com/arloliu/sonnerie/record"
	"github.com/arloliu/sonnerie/segment"
	"github.com/arloliu/sonnerie/wildcard"
)

// heapItem is one pending record from one source segment, carried
// alongside the iterator it came from so the heap can pull the source's
// next record once this one is popped.
type heapItem struct {
	rec     record.Record
	srcIdx  int // position in the Reader's snapshot; higher = more recent
	segIter *segment.Iterator
}

// mergeHeap orders items by (key, timestamp) ascending; ties — the same
// (key, timestamp) committed by more than one transaction — break in
// favor of the higher snapshot index, i.e. the most recently committed
// transaction surfaces first. There is no physical deletion in an
// append-only store: this ordering is what lets a caller treat the
// first record for a given (key, timestamp) as the current one.
type mergeHeap []heapItem

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	c := record.Compare(h[i].rec, h[j].rec)
	if c != 0 {
		return c < 0
	}

	return h[i].srcIdx > h[j].srcIdx
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x any) { *h = append(*h, x.(heapItem)) }

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]

	return item
}

// MergeIterator yields records from every segment in a Reader's
// snapshot, merged into one (key, timestamp)-ordered stream via an
// indexed min-heap: each Next exhausts the cheapest remaining
// candidate, then refills from that same source.
type MergeIterator struct {
	h mergeHeap
}

func newMergeIterator(segs []*segment.Reader, mk func(*segment.Reader) *segment.Iterator) (*MergeIterator, error) {
	mi := &MergeIterator{}

	for i, sr := range segs {
		it := mk(sr)

		rec, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if ok {
			mi.h = append(mi.h, heapItem{rec: rec, srcIdx: i, segIter: it})
		}
	}
	heap.Init(&mi.h)

	return mi, nil
}

// Next returns the next record in merge order, or ok=false once every
// source is exhausted.
func (mi *MergeIterator) Next() (record.Record, bool, error) {
	if len(mi.h) == 0 {
		return record.Record{}, false, nil
	}

	top := heap.Pop(&mi.h).(heapItem)

	rec, ok, err := top.segIter.Next()
	if err != nil {
		return record.Record{}, false, err
	}
	if ok {
		heap.Push(&mi.h, heapItem{rec: rec, srcIdx: top.srcIdx, segIter: top.segIter})
	}

	return top.rec, true, nil
}

// Get returns a MergeIterator over every record stored under key,
// across the whole snapshot.
func (rd *Reader) Get(key []byte) (*MergeIterator, error) {
	return newMergeIterator(rd.segs, func(sr *segment.Reader) *segment.Iterator {
		return sr.Get(key)
	})
}

// Range returns a MergeIterator over every record with key in [lo, hi)
// across the whole snapshot. A nil lo starts from the beginning; a nil
// hi has no upper bound.
func (rd *Reader) Range(lo, hi []byte) (*MergeIterator, error) {
	return newMergeIterator(rd.segs, func(sr *segment.Reader) *segment.Iterator {
		return sr.Range(lo, hi)
	})
}

// FilterIterator wraps a MergeIterator, keeping only records whose key
// matches a wildcard pattern.
type FilterIterator struct {
	mi      *MergeIterator
	pattern string
}

// Next returns the next matching record, or ok=false once the
// underlying MergeIterator is exhausted.
func (fi *FilterIterator) Next() (record.Record, bool, error) {
	for {
		rec, ok, err := fi.mi.Next()
		if err != nil || !ok {
			return rec, ok, err
		}
		if wildcard.Match(fi.pattern, rec.Key) {
			return rec, true, nil
		}
	}
}

// GetFilter returns a FilterIterator over every record whose key
// matches pattern. The scan is bounded to pattern's literal prefix (the
// bytes before its first '%') before the wildcard matcher filters what
// that range turns up.
func (rd *Reader) GetFilter(pattern string) (*FilterIterator, error) {
	lo := wildcard.LiteralPrefix(pattern)
	hi := upperBound(lo)

	mi, err := newMergeIterator(rd.segs, func(sr *segment.Reader) *segment.Iterator {
		return sr.Range(lo, hi)
	})
	if err != nil {
		return nil, err
	}

	return &FilterIterator{mi: mi, pattern: pattern}, nil
}

// upperBound returns the smallest byte string that strictly exceeds
// every string with prefix prefix, or nil (unbounded) if prefix is
// empty or consists entirely of 0xFF bytes.
func upperBound(prefix []byte) []byte {
	b := append([]byte(nil), prefix...)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xFF {
			b[i]++
			return b[:i+1]
		}
	}

	return nil
}
