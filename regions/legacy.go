package regions

import (
	"bytes"
	"fmt"
	"math/big"
	"os"

	pickle "github.com/kisielk/og-rek"
	"github.com/pkg/errors"
)

// LegacyLayout selects the tuple shape written by LegacyStore.Save.
type LegacyLayout int

const (
	// LegacyRects writes (x, y, w, h) tuples.
	LegacyRects LegacyLayout = iota
	// LegacyPoints writes (x, y) tuples; sizes fall back to the defaults on load.
	LegacyPoints
)

// LegacyStore reads and writes the pickled list of position tuples produced by
// the desktop region editor.
type LegacyStore struct {
	Path   string
	Layout LegacyLayout
	// Size applied to 2-tuples. Zero values use DefaultWidth and DefaultHeight.
	DefaultWidth  int
	DefaultHeight int
}

// NewLegacyStore returns a store for path writing 4-tuples.
func NewLegacyStore(path string) *LegacyStore {
	return &LegacyStore{Path: path}
}

// Load decodes the pickle. 2-tuples get the default size, longer tuples use
// their first four values, and IDs are LEGACY_000, LEGACY_001, ...
func (s *LegacyStore) Load() ([]Region, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, storeError("load", s.Path, notFound(err))
	}
	w, h := s.size()
	rs, err := decodeLegacy(data, w, h)
	if err != nil {
		return nil, storeError("load", s.Path, err)
	}
	return rs, nil
}

// Save writes the regions as a protocol 2 pickle list.
func (s *LegacyStore) Save(rs []Region) error {
	list := make([]interface{}, len(rs))
	for i, r := range rs {
		if s.Layout == LegacyPoints {
			list[i] = pickle.Tuple{int64(r.X), int64(r.Y)}
			continue
		}
		list[i] = pickle.Tuple{int64(r.X), int64(r.Y), int64(r.Width), int64(r.Height)}
	}

	var buf bytes.Buffer
	enc := pickle.NewEncoderWithConfig(&buf, &pickle.EncoderConfig{Protocol: 2})
	if err := enc.Encode(list); err != nil {
		return storeError("save", s.Path, errors.Wrap(err, "pickle"))
	}
	if err := writeFile(s.Path, buf.Bytes()); err != nil {
		return storeError("save", s.Path, err)
	}
	return nil
}

func (s *LegacyStore) size() (int, int) {
	w, h := s.DefaultWidth, s.DefaultHeight
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return w, h
}

func decodeLegacy(data []byte, defaultW, defaultH int) ([]Region, error) {
	obj, err := pickle.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return nil, corrupt("pickle: %v", err)
	}

	items, ok := asSequence(obj)
	if !ok {
		return nil, corrupt("pickle holds %T, want a list", obj)
	}

	rs := make([]Region, 0, len(items))
	for i, item := range items {
		tuple, ok := asSequence(item)
		if !ok {
			return nil, corrupt("entry %d is %T, want a tuple", i, item)
		}
		if len(tuple) != 2 && len(tuple) < 4 {
			return nil, corrupt("entry %d has %d values, want 2 or at least 4", i, len(tuple))
		}
		n := 4
		if len(tuple) == 2 {
			n = 2
		}
		vals := make([]int, n)
		for j := 0; j < n; j++ {
			v, ok := asInt(tuple[j])
			if !ok {
				return nil, corrupt("entry %d value %d is %T, want an integer", i, j, tuple[j])
			}
			vals[j] = v
		}

		r := Region{X: vals[0], Y: vals[1], Width: defaultW, Height: defaultH, ID: fmt.Sprintf("LEGACY_%03d", i)}
		if n == 4 {
			r.Width, r.Height = vals[2], vals[3]
		}
		rs = append(rs, r)
	}
	return rs, nil
}

func asSequence(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case []interface{}:
		return s, true
	case pickle.Tuple:
		return []interface{}(s), true
	default:
		return nil, false
	}
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case int:
		return n, true
	case *big.Int:
		if n.IsInt64() {
			return int(n.Int64()), true
		}
	case bool:
		// Python bools are ints.
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

var _ Store = (*LegacyStore)(nil)
