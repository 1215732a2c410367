package regions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionGeometry(t *testing.T) {
	r := Region{X: 10, Y: 20, Width: 107, Height: 48}

	assert.Equal(t, 107*48, r.Area())
	assert.Equal(t, 63, r.Center().X)
	assert.Equal(t, 44, r.Center().Y)
	assert.Equal(t, 117, r.Rect().Max.X)
	assert.Equal(t, 68, r.Rect().Max.Y)

	assert.True(t, r.Contains(10, 20))
	assert.True(t, r.Contains(117, 68), "right and bottom edges are inclusive")
	assert.False(t, r.Contains(118, 30))
	assert.False(t, r.Contains(9, 30))
}

func TestRegionValidate(t *testing.T) {
	tests := []struct {
		name string
		r    Region
		ok   bool
	}{
		{"valid", Region{X: 0, Y: 0, Width: 1, Height: 1}, true},
		{"negative x", Region{X: -1, Y: 0, Width: 1, Height: 1}, false},
		{"negative y", Region{X: 0, Y: -4, Width: 1, Height: 1}, false},
		{"zero width", Region{Width: 0, Height: 1}, false},
		{"negative height", Region{Width: 3, Height: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrInvalidRegion))
			}
		})
	}

	err := ValidateAll([]Region{{Width: 1, Height: 1}, {Width: 0, Height: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region 1")
}

func TestKeyAndFind(t *testing.T) {
	rs := []Region{{ID: "A1"}, {}}
	assert.Equal(t, "A1", rs[0].Key(0))
	assert.Equal(t, "space_1", rs[1].Key(1))

	i, ok := Find(rs, "space_1")
	assert.True(t, ok)
	assert.Equal(t, 1, i)
	_, ok = Find(rs, "nope")
	assert.False(t, ok)
}

func TestCloneIsIndependent(t *testing.T) {
	rs := []Region{{X: 1}}
	c := Clone(rs)
	c[0].X = 99
	assert.Equal(t, 1, rs[0].X)
	assert.Nil(t, Clone(nil))
}

func TestLegacyLoadPoints(t *testing.T) {
	rs, err := NewLegacyStore("testdata/points.pkl").Load()
	require.NoError(t, err)

	want := []Region{
		{X: 50, Y: 60, Width: 107, Height: 48, ID: "LEGACY_000"},
		{X: 160, Y: 60, Width: 107, Height: 48, ID: "LEGACY_001"},
		{X: 270, Y: 60, Width: 107, Height: 48, ID: "LEGACY_002"},
	}
	if diff := cmp.Diff(want, rs); diff != "" {
		t.Fatalf("regions mismatch (-want +got):\n%s", diff)
	}
}

func TestLegacyLoadRectsIgnoresExtras(t *testing.T) {
	rs, err := NewLegacyStore("testdata/rects.pkl").Load()
	require.NoError(t, err)

	want := []Region{
		{X: 10, Y: 20, Width: 107, Height: 48, ID: "LEGACY_000"},
		{X: 130, Y: 20, Width: 110, Height: 50, ID: "LEGACY_001"},
	}
	if diff := cmp.Diff(want, rs); diff != "" {
		t.Fatalf("regions mismatch (-want +got):\n%s", diff)
	}
}

func TestLegacyCustomDefaultSize(t *testing.T) {
	s := &LegacyStore{Path: "testdata/points.pkl", DefaultWidth: 50, DefaultHeight: 20}
	rs, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 50, rs[0].Width)
	assert.Equal(t, 20, rs[0].Height)
}

func TestLegacyLoadErrors(t *testing.T) {
	tests := []struct {
		file    string
		corrupt bool
		missing bool
	}{
		{"testdata/bad_shape.pkl", true, false},
		{"testdata/bad_value.pkl", true, false},
		{"testdata/not_list.pkl", true, false},
		{"testdata/garbage.pkl", true, false},
		{"testdata/does_not_exist.pkl", false, true},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.file), func(t *testing.T) {
			rs, err := NewLegacyStore(tt.file).Load()
			require.Error(t, err)
			assert.Nil(t, rs)

			var storeErr *RegionStoreError
			require.True(t, errors.As(err, &storeErr))
			assert.Equal(t, "load", storeErr.Op)
			assert.Equal(t, tt.file, storeErr.Path)
			assert.Equal(t, tt.corrupt, errors.Is(err, ErrCorrupt))
			assert.Equal(t, tt.missing, errors.Is(err, ErrNotFound))
		})
	}
}

func TestLegacyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := []Region{
		{X: 5, Y: 6, Width: 70, Height: 30, ID: "ignored"},
		{X: 100, Y: 6, Width: 71, Height: 31},
	}

	t.Run("rects", func(t *testing.T) {
		s := NewLegacyStore(filepath.Join(dir, "rects"))
		require.NoError(t, s.Save(in))
		out, err := s.Load()
		require.NoError(t, err)
		want := []Region{
			{X: 5, Y: 6, Width: 70, Height: 30, ID: "LEGACY_000"},
			{X: 100, Y: 6, Width: 71, Height: 31, ID: "LEGACY_001"},
		}
		if diff := cmp.Diff(want, out); diff != "" {
			t.Fatalf("(-want +got):\n%s", diff)
		}
	})

	t.Run("points", func(t *testing.T) {
		s := &LegacyStore{Path: filepath.Join(dir, "points"), Layout: LegacyPoints}
		require.NoError(t, s.Save(in))
		out, err := s.Load()
		require.NoError(t, err)
		require.Len(t, out, 2)
		for i := range in {
			assert.Equal(t, in[i].X, out[i].X)
			assert.Equal(t, in[i].Y, out[i].Y)
			assert.Equal(t, DefaultWidth, out[i].Width)
			assert.Equal(t, DefaultHeight, out[i].Height)
		}
	})
}

func TestJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spaces.json")
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	in := []Region{
		{X: 1, Y: 2, Width: 3, Height: 4, ID: "A1", Confidence: 0.75},
		{X: 10, Y: 20, Width: 30, Height: 40},
	}

	s := &JSONStore{Path: path, Metadata: map[string]interface{}{"camera": "north"}, Now: func() time.Time { return stamp }}
	require.NoError(t, s.Save(in))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"version": "2.0"`)
	assert.Contains(t, string(raw), `"timestamp": "2024-03-01T12:00:00Z"`)
	assert.Contains(t, string(raw), `"id": null`)

	loaded := NewJSONStore(path)
	out, err := loaded.Load()
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	assert.Equal(t, "north", loaded.Metadata["camera"])
}

func TestJSONMissingSpacesIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"2.0"}`), 0o644))

	rs, err := NewJSONStore(path).Load()
	require.NoError(t, err)
	assert.Empty(t, rs)
}

func TestJSONCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"spaces": [`), 0o644))

	_, err := NewJSONStore(path).Load()
	assert.True(t, errors.Is(err, ErrCorrupt))

	_, err = Load(path)
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestOpenPicksStoreByExtension(t *testing.T) {
	assert.IsType(t, &JSONStore{}, Open("a.JSON"))
	assert.IsType(t, &LegacyStore{}, Open("CarParkPos"))
	assert.IsType(t, &LegacyStore{}, Open("spaces.pkl"))
}

func TestLoadFallsBackToJSON(t *testing.T) {
	rs, err := Load("testdata/spaces_as_pickle_name")
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, Region{X: 1, Y: 2, Width: 3, Height: 4, Confidence: 0.5}, rs[0])

	_, err = Load("testdata/garbage.pkl")
	assert.True(t, errors.Is(err, ErrCorrupt))

	_, err = Load("testdata/missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestBackup(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "spaces.json")
	require.NoError(t, os.WriteFile(src, []byte("content"), 0o644))

	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)
	dst, err := backupAt(src, now)
	require.NoError(t, err)
	assert.Equal(t, src+".backup_20240506_070809", dst)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	dst, err = Backup(filepath.Join(dir, "missing"))
	assert.NoError(t, err)
	assert.Empty(t, dst)

	dst, err = Backup(src)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(dst), "spaces.json.backup_"))
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b Region
		want float64
	}{
		{"identical", Region{0, 0, 100, 100, "", 0}, Region{0, 0, 100, 100, "", 0}, 1.0},
		{"disjoint", Region{0, 0, 100, 100, "", 0}, Region{200, 200, 100, 100, "", 0}, 0},
		{"touching", Region{0, 0, 100, 100, "", 0}, Region{100, 0, 100, 100, "", 0}, 0},
		{"quarter corner", Region{0, 0, 100, 100, "", 0}, Region{50, 50, 100, 100, "", 0}, 1.0 / 7.0},
		{"contained", Region{0, 0, 100, 100, "", 0}, Region{25, 25, 50, 50, "", 0}, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, IoU(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, IoU(tt.b, tt.a), 1e-9)
		})
	}
}

func TestOverlaps(t *testing.T) {
	rs := []Region{
		{X: 0, Y: 0, Width: 100, Height: 50},
		{X: 2, Y: 1, Width: 100, Height: 50},
		{X: 300, Y: 0, Width: 100, Height: 50},
		{X: 90, Y: 0, Width: 100, Height: 50},
	}
	got := Overlaps(rs, 0.5)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].A)
	assert.Equal(t, 1, got[0].B)

	assert.Len(t, Overlaps(rs, 0.01), 3)
	assert.Empty(t, Overlaps(nil, 0))
}
