package filter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpec_Geometry(t *testing.T) {
	gauss, err := GaussianSpec(7, 2)
	require.NoError(t, err)

	tests := []struct {
		spec   Spec
		size   int
		radius int
		name   string
		label  string
	}{
		{gauss, 7, 3, "gaussian(7, σ=2)", "gaussian-7-s2"},
		{SobelSpec(), 3, 1, "sobel", "sobel"},
		{MedianSpec(5), 5, 2, "median(5)", "median-5"},
		{ConvolveSpec(SobelX()), 3, 1, "convolve(3)", "convolve-3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.size, tt.spec.Size())
		assert.Equal(t, tt.radius, tt.spec.Radius())
		assert.Equal(t, tt.name, tt.spec.String())
		assert.Equal(t, tt.label, tt.spec.Label())
		assert.NoError(t, tt.spec.Validate())
	}

	_, err = GaussianSpec(4, 1)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.ErrorIs(t, MedianSpec(2).Validate(), ErrInvalidParameter)
	assert.ErrorIs(t, Spec{Op: "blur"}.Validate(), ErrInvalidParameter)
	assert.ErrorIs(t, Spec{Op: OpConvolve}.Validate(), ErrInvalidParameter)
}

func TestSpec_LabelDistinguishesSigma(t *testing.T) {
	a, err := GaussianSpec(5, 1)
	require.NoError(t, err)
	b, err := GaussianSpec(5, 1.4)
	require.NoError(t, err)

	assert.Equal(t, "gaussian-5-s1", a.Label())
	assert.Equal(t, "gaussian-5-s1.4", b.Label())
}

func TestSpec_Check(t *testing.T) {
	gauss, err := GaussianSpec(5, 1)
	require.NoError(t, err)

	assert.NoError(t, gauss.Check(New(5, 5)))
	assert.ErrorIs(t, gauss.Check(New(4, 9)), ErrInvalidParameter)
	assert.NoError(t, MedianSpec(9).Check(New(2, 2)))
	assert.ErrorIs(t, SobelSpec().Check(New(0, 2)), ErrInvalidImage)
}

func TestApply_Unknown(t *testing.T) {
	out, err := Apply(New(3, 3), Spec{Op: "blur"})
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Nil(t, out)
}

func TestApplyTile_MatchesWholeImage(t *testing.T) {
	img := noiseImage(19, 13, 11)
	gauss, err := GaussianSpec(5, 1.2)
	require.NoError(t, err)
	box, err := NewKernel(3, []float64{1, 2, 1, 2, 4, 2, 1, 2, 1})
	require.NoError(t, err)

	for _, s := range []Spec{gauss, ConvolveSpec(box), SobelSpec(), MedianSpec(3)} {
		for _, b := range []Boundary{Zero, Replicate, Wrap} {
			want, err := Apply(img, s, WithBoundary(b))
			require.NoError(t, err)

			p, err := Pad(img, s.Radius(), b)
			require.NoError(t, err)
			got := New(img.Width, img.Height)

			const tileSize = 4
			for ty := 0; ty < img.Height; ty += tileSize {
				for tx := 0; tx < img.Width; tx += tileSize {
					w, h := min(tileSize, img.Width-tx), min(tileSize, img.Height-ty)
					tile, err := p.Crop(tx, ty, w, h)
					require.NoError(t, err)

					// Tiles travel as JSON between processes
					raw, err := json.Marshal(struct {
						Spec Spec
						Tile *Padded
					}{s, tile})
					require.NoError(t, err)
					var msg struct {
						Spec Spec
						Tile *Padded
					}
					require.NoError(t, json.Unmarshal(raw, &msg))

					out, err := ApplyTile(msg.Spec, msg.Tile)
					require.NoError(t, err)
					for y := 0; y < h; y++ {
						copy(got.Pix[(ty+y)*img.Width+tx:], out.Row(y))
					}
				}
			}
			assert.True(t, got.Equal(want), "%s with %s boundary", s, b)
		}
	}
}

func TestApplyTile_Invalid(t *testing.T) {
	img := noiseImage(6, 6, 12)
	p, err := Pad(img, 1, Zero)
	require.NoError(t, err)

	_, err = ApplyTile(MedianSpec(5), p)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = ApplyTile(MedianSpec(4), p)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = ApplyTile(SobelSpec(), &Padded{Width: 1, Height: 1, Radius: 1})
	assert.ErrorIs(t, err, ErrInvalidImage)
}
