package regions

import (
	"bytes"
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
)

// JSONVersion is written into every JSON region file.
const JSONVersion = "2.0"

type jsonFile struct {
	Version   string                 `json:"version"`
	Timestamp string                 `json:"timestamp"`
	Spaces    []jsonSpace            `json:"spaces"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// jsonSpace keeps a missing id as null on disk.
type jsonSpace struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	ID         *string `json:"id"`
	Confidence float64 `json:"confidence"`
}

// JSONStore reads and writes the versioned JSON region format.
type JSONStore struct {
	Path string
	// Metadata is written alongside the spaces on Save and filled on Load.
	Metadata map[string]interface{}
	// Now stamps saved files; defaults to time.Now.
	Now func() time.Time
}

// NewJSONStore returns a store for path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{Path: path}
}

// Load reads the file. A file without a spaces key yields an empty list.
func (s *JSONStore) Load() ([]Region, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, storeError("load", s.Path, notFound(err))
	}
	rs, meta, err := decodeJSON(data)
	if err != nil {
		return nil, storeError("load", s.Path, err)
	}
	s.Metadata = meta
	return rs, nil
}

// Save writes the regions, replacing the file.
func (s *JSONStore) Save(rs []Region) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	doc := jsonFile{
		Version:   JSONVersion,
		Timestamp: now().Format(time.RFC3339),
		Spaces:    make([]jsonSpace, len(rs)),
		Metadata:  s.Metadata,
	}
	for i, r := range rs {
		sp := jsonSpace{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height, Confidence: r.Confidence}
		if r.ID != "" {
			id := r.ID
			sp.ID = &id
		}
		doc.Spaces[i] = sp
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return storeError("save", s.Path, errors.Wrap(err, "marshal"))
	}
	if err := writeFile(s.Path, append(data, '\n')); err != nil {
		return storeError("save", s.Path, err)
	}
	return nil
}

func decodeJSON(data []byte) ([]Region, map[string]interface{}, error) {
	var doc jsonFile
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, corrupt("json: %v", err)
	}
	rs := make([]Region, 0, len(doc.Spaces))
	for _, sp := range doc.Spaces {
		r := Region{X: sp.X, Y: sp.Y, Width: sp.Width, Height: sp.Height, Confidence: sp.Confidence}
		if sp.ID != nil {
			r.ID = *sp.ID
		}
		rs = append(rs, r)
	}
	return rs, doc.Metadata, nil
}

var _ Store = (*JSONStore)(nil)
