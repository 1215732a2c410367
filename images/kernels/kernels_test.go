package kernels

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func countNonZero(img *image.Gray) int {
	n := 0
	for _, p := range img.Pix {
		if p != 0 {
			n++
		}
	}
	return n
}

func TestLumaMatchesOpenCVWeights(t *testing.T) {
	tests := []struct {
		name    string
		b, g, r uint8
		want    uint8
	}{
		{"black", 0, 0, 0, 0},
		{"white", 255, 255, 255, 255},
		{"blue", 255, 0, 0, 29},
		{"green", 0, 255, 0, 150},
		{"red", 0, 0, 255, 76},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Luma(tt.b, tt.g, tt.r))
		})
	}
}

func TestBGRToGray(t *testing.T) {
	pix := []uint8{255, 0, 0, 0, 255, 0, 0, 0, 255, 10, 10, 10}
	dst := image.NewGray(image.Rect(0, 0, 2, 2))
	require.NoError(t, BGRToGray(pix, 2, 2, dst, Options{}))
	assert.Equal(t, []uint8{29, 150, 76, 10}, dst.Pix)

	assert.Error(t, BGRToGray(pix[:6], 2, 2, dst, Options{}))
	assert.Error(t, BGRToGray(pix, 4, 1, dst, Options{}))
}

func TestGaussianKernel(t *testing.T) {
	k, err := GaussianKernel(3, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint16{70, 116, 70}, k)

	// Same taps as cv::getGaussianKernel(25, 0) in fixed point (CV_8U path).
	k, err = GaussianKernel(25, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 1, 1, 3, 3, 6, 9, 12, 15, 19, 22, 25, 24, 25, 22, 19, 15, 12, 9, 6, 3, 3, 1, 1, 0}, k)

	sum := 0
	for _, v := range k {
		sum += int(v)
	}
	assert.Equal(t, 256, sum)

	_, err = GaussianKernel(4, 1)
	assert.Error(t, err)
	_, err = GaussianKernel(0, 1)
	assert.Error(t, err)
}

func stepGray(w, h, split int, left, right uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := right
			if x < split {
				v = left
			}
			img.Pix[y*img.Stride+x] = v
		}
	}
	return img
}

func TestAdaptiveThresholdStepEdge(t *testing.T) {
	src := stepGray(32, 3, 16, 60, 180)

	// Local means of the 25x25 Gaussian window with a replicated border.
	k, err := GaussianKernel(25, 0)
	require.NoError(t, err)
	mean := image.NewGray(src.Rect)
	require.NoError(t, GaussianBlur(src, mean, k, EdgeReplicate, Options{}))
	want := []uint8{
		60, 60, 60, 60, 60, 60, 61, 62, 64, 67, 71, 76, 83, 92, 103, 114,
		126, 137, 148, 157, 164, 169, 173, 176, 178, 179, 180, 180, 180, 180, 180, 180,
	}
	for y := 0; y < 3; y++ {
		assert.Equal(t, want, mean.Pix[y*mean.Stride:y*mean.Stride+32], "row %d", y)
	}

	// Dark side of the edge within C of the mean is foreground, including
	// x=11 where src-mean is exactly -16.
	dst := image.NewGray(src.Rect)
	require.NoError(t, AdaptiveThreshold(src, dst, 255, 25, 16, true, Options{}))
	for y := 0; y < 3; y++ {
		for x := 0; x < 32; x++ {
			exp := uint8(0)
			if x >= 11 && x <= 15 {
				exp = 255
			}
			assert.Equal(t, exp, dst.GrayAt(x, y).Y, "(%d,%d)", x, y)
		}
	}
}

func TestGaussianBlurUniformStaysUniform(t *testing.T) {
	k, err := GaussianKernel(3, 1)
	require.NoError(t, err)
	for _, edge := range []EdgeMode{EdgeReplicate, EdgeReflect101, EdgeWrap} {
		src := uniformGray(9, 7, 137)
		dst := image.NewGray(src.Rect)
		require.NoError(t, GaussianBlur(src, dst, k, edge, Options{}))
		assert.Equal(t, src.Pix, dst.Pix, edge.String())
	}
}

func TestGaussianBlurImpulse(t *testing.T) {
	src := uniformGray(5, 5, 0)
	src.Pix[2*src.Stride+2] = 255
	dst := image.NewGray(src.Rect)

	k, err := GaussianKernel(3, 1)
	require.NoError(t, err)
	require.NoError(t, GaussianBlur(src, dst, k, EdgeReflect101, Options{}))

	assert.Equal(t, uint8(52), dst.GrayAt(2, 2).Y)
	assert.Equal(t, uint8(32), dst.GrayAt(1, 2).Y)
	assert.Equal(t, uint8(32), dst.GrayAt(2, 3).Y)
	assert.Equal(t, uint8(19), dst.GrayAt(1, 1).Y)
	assert.Equal(t, uint8(19), dst.GrayAt(3, 3).Y)
	assert.Equal(t, uint8(0), dst.GrayAt(0, 0).Y)
}

func TestGaussianBlurSizeMismatch(t *testing.T) {
	k, _ := GaussianKernel(3, 1)
	err := GaussianBlur(uniformGray(4, 4, 0), uniformGray(5, 4, 0), k, EdgeReplicate, Options{})
	assert.Error(t, err)
}

func TestAdaptiveThresholdSingleDarkPixel(t *testing.T) {
	src := uniformGray(40, 40, 200)
	src.Pix[20*src.Stride+20] = 100
	dst := image.NewGray(src.Rect)

	require.NoError(t, AdaptiveThreshold(src, dst, 255, 25, 16, true, Options{}))
	assert.Equal(t, 1, countNonZero(dst))
	assert.Equal(t, uint8(255), dst.GrayAt(20, 20).Y)

	require.NoError(t, AdaptiveThreshold(src, dst, 255, 25, 16, false, Options{}))
	assert.Equal(t, 40*40-1, countNonZero(dst))
	assert.Equal(t, uint8(0), dst.GrayAt(20, 20).Y)
}

func TestAdaptiveThresholdUniformIsBackground(t *testing.T) {
	src := uniformGray(30, 30, 90)
	dst := image.NewGray(src.Rect)
	require.NoError(t, AdaptiveThreshold(src, dst, 255, 25, 16, true, Options{}))
	assert.Zero(t, countNonZero(dst))
}

func TestAdaptiveThresholdRejectsEvenBlock(t *testing.T) {
	src := uniformGray(8, 8, 0)
	assert.Error(t, AdaptiveThreshold(src, image.NewGray(src.Rect), 255, 24, 16, true, Options{}))
	assert.Error(t, AdaptiveThreshold(src, image.NewGray(src.Rect), 255, 1, 16, true, Options{}))
}

func TestMedianBlurRemovesSalt(t *testing.T) {
	src := uniformGray(9, 9, 0)
	src.Pix[4*src.Stride+4] = 255
	dst := image.NewGray(src.Rect)
	require.NoError(t, MedianBlur(src, dst, 5, Options{}))
	assert.Zero(t, countNonZero(dst))
}

func TestMedianBlurKeepsEdges(t *testing.T) {
	src := uniformGray(8, 8, 0)
	for y := 0; y < 8; y++ {
		for x := 0; x < 4; x++ {
			src.Pix[y*src.Stride+x] = 255
		}
	}
	dst := image.NewGray(src.Rect)
	require.NoError(t, MedianBlur(src, dst, 5, Options{}))
	for y := 0; y < 8; y++ {
		assert.Equal(t, uint8(255), dst.GrayAt(3, y).Y)
		assert.Equal(t, uint8(0), dst.GrayAt(4, y).Y)
	}
}

func TestMedianBlurRejectsBadKernel(t *testing.T) {
	src := uniformGray(8, 8, 0)
	for _, k := range []int{1, 4, 9} {
		assert.Error(t, MedianBlur(src, image.NewGray(src.Rect), k, Options{}), "ksize %d", k)
	}
}

func TestDilate(t *testing.T) {
	tests := []struct {
		name       string
		x, y       int
		iterations int
		want       int
	}{
		{"centre", 5, 5, 1, 9},
		{"corner", 0, 0, 1, 4},
		{"twice", 5, 5, 2, 25},
		{"none", 5, 5, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := uniformGray(11, 11, 0)
			src.Pix[tt.y*src.Stride+tt.x] = 255
			dst := image.NewGray(src.Rect)
			require.NoError(t, Dilate(src, dst, 3, tt.iterations, Options{}))
			assert.Equal(t, tt.want, countNonZero(dst))
		})
	}
}

func TestDilateRejectsBadArguments(t *testing.T) {
	src := uniformGray(4, 4, 0)
	assert.Error(t, Dilate(src, image.NewGray(src.Rect), 2, 1, Options{}))
	assert.Error(t, Dilate(src, image.NewGray(src.Rect), 3, -1, Options{}))
}

func TestCountValueAndSumClip(t *testing.T) {
	img := uniformGray(10, 10, 0)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			img.Pix[y*img.Stride+x] = 255
		}
	}

	assert.Equal(t, 25, CountValue(img, image.Rect(0, 0, 10, 10), 255))
	assert.Equal(t, 25, CountValue(img, image.Rect(-5, -5, 5, 5), 255))
	assert.Equal(t, 0, CountValue(img, image.Rect(20, 20, 30, 30), 255))

	sum, n := Sum(img, image.Rect(0, 0, 10, 10))
	assert.Equal(t, 100, n)
	assert.Equal(t, uint64(255*25), sum)

	sum, n = Sum(img, image.Rect(8, 8, 20, 20))
	assert.Equal(t, 4, n)
	assert.Zero(t, sum)

	sum, n = Sum(img, image.Rect(50, 50, 60, 60))
	assert.Zero(t, n)
	assert.Zero(t, sum)
}

func TestMapCoord(t *testing.T) {
	tests := []struct {
		i, n int
		mode EdgeMode
		want int
	}{
		{-1, 5, EdgeReflect101, 1},
		{-2, 5, EdgeReflect101, 2},
		{5, 5, EdgeReflect101, 3},
		{6, 5, EdgeReflect101, 2},
		{-3, 1, EdgeReflect101, 0},
		{-1, 5, EdgeReplicate, 0},
		{9, 5, EdgeReplicate, 4},
		{-1, 5, EdgeWrap, 4},
		{7, 5, EdgeWrap, 2},
		{3, 5, EdgeWrap, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapCoord(tt.i, tt.n, tt.mode), "%s(%d, %d)", tt.mode, tt.i, tt.n)
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	w, h := 97, 61
	src := image.NewGray(image.Rect(0, 0, w, h))
	for i := range src.Pix {
		src.Pix[i] = uint8((i*37 + i/w*11) % 256)
	}
	pool := &Pool{}

	run := func(opt Options) []uint8 {
		blur := image.NewGray(src.Rect)
		k, _ := GaussianKernel(3, 1)
		require.NoError(t, GaussianBlur(src, blur, k, EdgeReflect101, opt))
		thr := image.NewGray(src.Rect)
		require.NoError(t, AdaptiveThreshold(blur, thr, 255, 25, 16, true, opt))
		med := image.NewGray(src.Rect)
		require.NoError(t, MedianBlur(thr, med, 5, opt))
		out := image.NewGray(src.Rect)
		require.NoError(t, Dilate(med, out, 3, 1, opt))
		return out.Pix
	}

	serial := run(Options{})
	assert.Equal(t, serial, run(Options{Parallel: true}))
	assert.Equal(t, serial, run(Options{Parallel: true, Pool: pool}))
	assert.Equal(t, serial, run(Options{Pool: pool}))
}
