package vectorstore

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// MemoryStore is an in-process brute-force cosine index partitioned by
// namespace. It can be snapshotted to disk with Save and restored with Load.
type MemoryStore struct {
	name       string
	dimensions int
	// namespaces maps namespace -> record ID -> record.
	namespaces map[string]map[string]*Record
	mu         sync.RWMutex
}

// NewMemoryStore creates an empty memory store for vectors of the given dimension.
func NewMemoryStore(name string, dimensions int) (*MemoryStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryStore{
		name:       name,
		dimensions: dimensions,
		namespaces: make(map[string]map[string]*Record),
	}, nil
}

// Type returns the store type identifier.
func (m *MemoryStore) Type() string {
	return TypeMemory
}

// EnsureIndex is a no-op: the memory store is its own single index.
func (m *MemoryStore) EnsureIndex(ctx context.Context) error {
	return ctx.Err()
}

// Upsert inserts records into namespace, replacing records with the same ID.
func (m *MemoryStore) Upsert(ctx context.Context, namespace string, records []Record) error {
	for _, r := range records {
		if len(r.Values) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(r.Values), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]*Record)
		m.namespaces[namespace] = ns
	}
	for _, r := range records {
		vec := make([]float32, m.dimensions)
		copy(vec, r.Values)
		meta := make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		ns[r.ID] = &Record{ID: r.ID, Values: vec, Metadata: meta}
	}
	return nil
}

// Query returns the topK records of namespace by cosine similarity, best first.
// Ties are broken by ID so results are stable.
func (m *MemoryStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]*Match, error) {
	if len(vector) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vector), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns := m.namespaces[namespace]
	if topK <= 0 || len(ns) == 0 {
		return nil, nil
	}
	matches := make([]*Match, 0, len(ns))
	for _, r := range ns {
		matches = append(matches, &Match{ID: r.ID, Score: CosineSimilarity(vector, r.Values), Metadata: r.Metadata})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if topK > len(matches) {
		topK = len(matches)
	}
	return matches[:topK], nil
}

// Stats returns vector counts per namespace.
func (m *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := &Stats{IndexName: m.name, Dimension: m.dimensions, Namespaces: make(map[string]int64)}
	for ns, recs := range m.namespaces {
		s.Namespaces[ns] = int64(len(recs))
		s.TotalVectors += int64(len(recs))
	}
	return s, nil
}

// Size returns the number of vectors across all namespaces.
func (m *MemoryStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, recs := range m.namespaces {
		n += len(recs)
	}
	return n
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}

// Save persists the store to path, creating the directory if needed. An empty
// path is a no-op. Format (little endian): dimension (4), record count (4), then
// per record: namespace, id and JSON metadata as length-prefixed (4) byte
// strings followed by the vector (dimension*4 bytes).
func (m *MemoryStore) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := m.writeTo(w); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

func (m *MemoryStore) writeTo(w io.Writer) error {
	var n uint32
	for _, recs := range m.namespaces {
		n += uint32(len(recs))
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, n); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for ns, recs := range m.namespaces {
		for _, r := range recs {
			meta, err := json.Marshal(r.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata for %s: %w", r.ID, err)
			}
			for _, b := range [][]byte{[]byte(ns), []byte(r.ID), meta} {
				if err := writeBytes(w, b); err != nil {
					return err
				}
			}
			if _, err := w.Write(float32SliceToBytes(r.Values)); err != nil {
				return fmt.Errorf("write vector: %w", err)
			}
		}
	}
	return nil
}

// Load replaces the store contents with the snapshot at path. A missing file
// is not an error and leaves the store unchanged. Dimensions must match.
func (m *MemoryStore) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	loaded := make(map[string]map[string]*Record)
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		ns, err := readBytes(r)
		if err != nil {
			return err
		}
		id, err := readBytes(r)
		if err != nil {
			return err
		}
		metaJSON, err := readBytes(r)
		if err != nil {
			return err
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		var meta map[string]interface{}
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			return fmt.Errorf("decode metadata for %s: %w", id, err)
		}
		if loaded[string(ns)] == nil {
			loaded[string(ns)] = make(map[string]*Record)
		}
		loaded[string(ns)][string(id)] = &Record{ID: string(id), Values: bytesToFloat32Slice(buf), Metadata: meta}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.namespaces = loaded
	return nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write bytes: %w", err)
	}
	return nil
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("read bytes: %w", err)
	}
	return b, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
