// Package vectorstore implements the persistent (vector, id, payload) index
// with filtered KNN described in spec.md §4.3: a flat exact index, metric
// configurable at construction (IP or L2), with the payload filter applied
// to each row during the scan, so the top k are chosen among matching rows
// only. Persistence is two sibling files flushed atomically
// (temp-file + rename, the idiom intelligencedev-manifold uses for its
// encrypted project envelopes) after every mutating call.
package vectorstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mnemoforge/mnemo/internal/encoding"
	"github.com/mnemoforge/mnemo/internal/errs"
	"github.com/mnemoforge/mnemo/internal/logging"
	"github.com/mnemoforge/mnemo/pkg/index"
)

// Metric selects the scoring function. Callers supplying unit-normalised
// vectors under IP get cosine-like scores; L2 yields negative Euclidean
// distance so "higher is more similar" holds for both.
type Metric string

const (
	MetricIP Metric = "IP"
	MetricL2 Metric = "L2"
)

// Filters is the payload predicate Search and List apply to every row before
// ranking or limiting. Equals entries must all match;
// NotEquals entries must all fail to match (used to exclude procedural
// memories from ordinary search/reconciliation candidate gathering).
type Filters struct {
	Equals    map[string]string
	NotEquals map[string]string
}

// Hit is one ranked search result.
type Hit struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// ListItem is one row from a payload scan.
type ListItem struct {
	ID      string
	Payload map[string]any
}

type row struct {
	id      string
	vector  []float32
	payload map[string]any
	seq     int64
}

// Store is a single collection's flat exact vector index plus its payload
// map. All mutating operations and the KNN scan are serialised by mu, so
// readers never observe a torn index.
type Store struct {
	mu         sync.RWMutex
	dir        string
	collection string
	dim        int
	metric     Metric
	rows       map[string]*row
	nextSeq    int64
	log        logging.Logger
}

// Open constructs a Store for the given collection, loading any persisted
// state under dir. A corrupt or missing file starts the store empty; per
// spec.md §4.3 this is never surfaced as an error.
func Open(dir, collection string, dim int, metric Metric, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.Nop()
	}
	if metric == "" {
		metric = MetricIP
	}
	s := &Store{
		dir:        dir,
		collection: collection,
		dim:        dim,
		metric:     metric,
		rows:       make(map[string]*row),
		log:        log,
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap("open", errs.ErrStoreIO, err)
	}
	s.load()
	return s, nil
}

func (s *Store) indexPath() string   { return filepath.Join(s.dir, s.collection+".index") }
func (s *Store) payloadPath() string { return filepath.Join(s.dir, s.collection+".payload.json") }

// load reads the index and payload files. Any failure is logged and the
// store starts empty, matching StoreCorrupt semantics.
func (s *Store) load() {
	idxBytes, err := os.ReadFile(s.indexPath())
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("vectorstore: index file unreadable, starting empty", "collection", s.collection, "error", err)
		}
		return
	}
	payloadBytes, err := os.ReadFile(s.payloadPath())
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("vectorstore: payload file unreadable, starting empty", "collection", s.collection, "error", err)
		}
		return
	}

	vecs, seqs, ids, err := decodeIndex(idxBytes)
	if err != nil {
		s.log.Warn("vectorstore: index file corrupt, starting empty", "collection", s.collection, "error", err)
		return
	}
	var payloads map[string]map[string]any
	if err := json.Unmarshal(payloadBytes, &payloads); err != nil {
		s.log.Warn("vectorstore: payload file corrupt, starting empty", "collection", s.collection, "error", err)
		return
	}

	rows := make(map[string]*row, len(ids))
	var maxSeq int64
	for i, id := range ids {
		rows[id] = &row{id: id, vector: vecs[i], payload: payloads[id], seq: seqs[i]}
		if seqs[i] > maxSeq {
			maxSeq = seqs[i]
		}
	}
	s.rows = rows
	s.nextSeq = maxSeq + 1
}

// persist flushes the index and payload files via write-temp-then-rename, so
// a crash mid-write never leaves a torn file on disk.
func (s *Store) persist() error {
	ids := make([]string, 0, len(s.rows))
	vecs := make([][]float32, 0, len(s.rows))
	seqs := make([]int64, 0, len(s.rows))
	payloads := make(map[string]map[string]any, len(s.rows))
	for id, r := range s.rows {
		ids = append(ids, id)
		vecs = append(vecs, r.vector)
		seqs = append(seqs, r.seq)
		payloads[id] = normalizePayload(r.payload)
	}

	idxBytes, err := encodeIndex(ids, vecs, seqs)
	if err != nil {
		return errs.Wrap("persist", errs.ErrStoreIO, err)
	}
	payloadBytes, err := json.Marshal(payloads)
	if err != nil {
		return errs.Wrap("persist", errs.ErrStoreIO, err)
	}

	if err := writeFileAtomic(s.indexPath(), idxBytes); err != nil {
		return errs.Wrap("persist", errs.ErrStoreIO, err)
	}
	if err := writeFileAtomic(s.payloadPath(), payloadBytes); err != nil {
		return errs.Wrap("persist", errs.ErrStoreIO, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// normalizePayload converts raw vectors/byte blobs to JSON-safe forms. The
// embedding itself is never included (it already lives in the index file).
func normalizePayload(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		switch val := v.(type) {
		case []float32:
			arr := make([]float64, len(val))
			for i, x := range val {
				arr[i] = float64(x)
			}
			out[k] = arr
		case []byte:
			out[k] = string(val)
		default:
			out[k] = v
		}
	}
	return out
}

// Insert atomically appends n rows.
func (s *Store) Insert(ids []string, vectors [][]float32, payloads []map[string]any) error {
	if len(ids) != len(vectors) || len(ids) != len(payloads) {
		return errs.Wrap("insert", errs.ErrInputInvalid, fmt.Errorf("ids/vectors/payloads length mismatch"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range ids {
		if s.dim > 0 && len(vectors[i]) != s.dim {
			return errs.Wrap("insert", errs.ErrInputInvalid, fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dim, len(vectors[i])))
		}
	}

	for i, id := range ids {
		v := make([]float32, len(vectors[i]))
		copy(v, vectors[i])
		s.rows[id] = &row{id: id, vector: v, payload: payloads[i], seq: s.nextSeq}
		s.nextSeq++
	}

	return s.persist()
}

// Update replaces the vector and/or payload for id. Either may be nil to
// leave that part unchanged.
func (s *Store) Update(id string, vector []float32, payload map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok {
		return errs.Wrap("update", errs.ErrNotFound, fmt.Errorf("id %q not found", id))
	}
	if vector != nil {
		if s.dim > 0 && len(vector) != s.dim {
			return errs.Wrap("update", errs.ErrInputInvalid, fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dim, len(vector)))
		}
		v := make([]float32, len(vector))
		copy(v, vector)
		r.vector = v
	}
	if payload != nil {
		r.payload = payload
	}

	return s.persist()
}

// Delete removes a row. Deleting an absent id is a no-op, matching the
// spec's "DELETE refers to a known id" invariant being enforced by the
// caller (the Reconciler), not the store.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[id]; !ok {
		return nil
	}
	delete(s.rows, id)
	return s.persist()
}

// Get returns the payload for id, or ok=false if absent.
func (s *Store) Get(id string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rows[id]
	if !ok {
		return nil, false
	}
	return normalizePayload(r.payload), true
}

func matchFilters(payload map[string]any, f Filters) bool {
	for k, want := range f.Equals {
		got, ok := payload[k]
		if !ok || fmt.Sprint(got) != want {
			return false
		}
	}
	for k, excl := range f.NotEquals {
		if got, ok := payload[k]; ok && fmt.Sprint(got) == excl {
			return false
		}
	}
	return true
}

// score reports a "higher is better" similarity for both metrics, delegating
// the actual distance math to pkg/index's DotProductDistance/
// EuclideanDistance (both "smaller is more similar", so negated here).
func (s *Store) score(a, b []float32) float64 {
	switch s.metric {
	case MetricL2:
		return -float64(index.EuclideanDistance(a, b))
	default: // IP
		return -float64(index.DotProductDistance(a, b))
	}
}

// Search performs exact KNN over all stored rows that pass filters (rows
// failing the filter are skipped before scoring), and returns at most k of
// them in descending score order with ties broken by insertion order
// (earlier wins).
func (s *Store) Search(vector []float32, k int, filters Filters) ([]Hit, error) {
	if k <= 0 {
		return nil, errs.Wrap("search", errs.ErrInputInvalid, fmt.Errorf("k must be positive"))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		hit Hit
		seq int64
	}
	candidates := make([]scored, 0, len(s.rows))
	for _, r := range s.rows {
		p := normalizePayload(r.payload)
		if !matchFilters(p, filters) {
			continue
		}
		candidates = append(candidates, scored{
			hit: Hit{ID: r.id, Score: s.score(vector, r.vector), Payload: p},
			seq: r.seq,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].hit.Score != candidates[j].hit.Score {
			return candidates[i].hit.Score > candidates[j].hit.Score
		}
		return candidates[i].seq < candidates[j].seq
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]Hit, len(candidates))
	for i, c := range candidates {
		out[i] = c.hit
	}
	return out, nil
}

// List performs a payload scan, optionally bounded by limit (<=0 means
// unbounded).
func (s *Store) List(filters Filters, limit int) ([]ListItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type seqed struct {
		item ListItem
		seq  int64
	}
	items := make([]seqed, 0, len(s.rows))
	for _, r := range s.rows {
		p := normalizePayload(r.payload)
		if !matchFilters(p, filters) {
			continue
		}
		items = append(items, seqed{item: ListItem{ID: r.id, Payload: p}, seq: r.seq})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].seq < items[j].seq })

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]ListItem, len(items))
	for i, it := range items {
		out[i] = it.item
	}
	return out, nil
}

// Reset drops all rows, recreates an empty index, and persists it.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = make(map[string]*row)
	s.nextSeq = 0
	return s.persist()
}

// Dimension returns the collection's configured vector dimension.
func (s *Store) Dimension() int { return s.dim }

func encodeIndex(ids []string, vecs [][]float32, seqs []int64) ([]byte, error) {
	buf := make([]byte, 0, 1024)
	buf = appendUint32(buf, uint32(len(ids)))
	for i, id := range ids {
		buf = appendUint32(buf, uint32(len(id)))
		buf = append(buf, id...)
		buf = appendUint64(buf, uint64(seqs[i]))
		vb, err := encoding.EncodeVector(vecs[i])
		if err != nil {
			return nil, err
		}
		buf = appendUint32(buf, uint32(len(vb)))
		buf = append(buf, vb...)
	}
	return buf, nil
}

func decodeIndex(data []byte) (vecs [][]float32, seqs []int64, ids []string, err error) {
	off := 0
	readUint32 := func() (uint32, error) {
		if off+4 > len(data) {
			return 0, fmt.Errorf("truncated index file")
		}
		v := uint32(data[off])<<24 | uint32(data[off+1])<<16 | uint32(data[off+2])<<8 | uint32(data[off+3])
		off += 4
		return v, nil
	}
	readUint64 := func() (uint64, error) {
		if off+8 > len(data) {
			return 0, fmt.Errorf("truncated index file")
		}
		v := uint64(0)
		for i := 0; i < 8; i++ {
			v = v<<8 | uint64(data[off+i])
		}
		off += 8
		return v, nil
	}

	n, err := readUint32()
	if err != nil {
		return nil, nil, nil, err
	}
	ids = make([]string, 0, n)
	vecs = make([][]float32, 0, n)
	seqs = make([]int64, 0, n)
	for i := uint32(0); i < n; i++ {
		idLen, err := readUint32()
		if err != nil {
			return nil, nil, nil, err
		}
		if off+int(idLen) > len(data) {
			return nil, nil, nil, fmt.Errorf("truncated index file")
		}
		id := string(data[off : off+int(idLen)])
		off += int(idLen)

		seq, err := readUint64()
		if err != nil {
			return nil, nil, nil, err
		}

		vbLen, err := readUint32()
		if err != nil {
			return nil, nil, nil, err
		}
		if off+int(vbLen) > len(data) {
			return nil, nil, nil, fmt.Errorf("truncated index file")
		}
		vec, err := encoding.DecodeVector(data[off : off+int(vbLen)])
		if err != nil {
			return nil, nil, nil, err
		}
		off += int(vbLen)

		ids = append(ids, id)
		vecs = append(vecs, vec)
		seqs = append(seqs, int64(seq))
	}
	return vecs, seqs, ids, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendUint64(buf []byte, v uint64) []byte {
	for i := 7; i >= 0; i-- {
		buf = append(buf, byte(v>>(uint(i)*8)))
	}
	return buf
}
