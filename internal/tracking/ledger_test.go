package tracking_test

import (
	"encoding/json"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"platewatch/internal/testsupport"
	"platewatch/internal/tracking"
)

type fixedScorer map[image.Image]float64

func (f fixedScorer) Score(img image.Image) float64 { return f[img] }

func box(size float64) tracking.BBox {
	return tracking.BBox{X1: 0, Y1: 0, X2: size, Y2: size}
}

func TestGoldenFrameRequiresLargerAndSharper(t *testing.T) {
	small := testsupport.CheckerImage(10, 10, 1)
	bigBlurry := testsupport.CheckerImage(20, 20, 1)
	bigSharp := testsupport.CheckerImage(21, 21, 1)
	smallerSharp := testsupport.CheckerImage(8, 8, 1)
	scorer := fixedScorer{small: 80, bigBlurry: 50, bigSharp: 120, smallerSharp: 500}

	ledger := tracking.NewLedger(tracking.Options{Scorer: scorer})

	track := ledger.Observe(tracking.Observation{TrackID: 1, BBox: box(10), Crop: small, Timestamp: 0.1, FrameIndex: 1})
	require.True(t, track.HasGolden())
	assert.Equal(t, 1, track.Golden.FrameIndex)

	// Larger but exactly at the floor: rejected.
	ledger.Observe(tracking.Observation{TrackID: 1, BBox: box(20), Crop: bigBlurry, Timestamp: 0.2, FrameIndex: 2})
	assert.Equal(t, 1, track.Golden.FrameIndex)

	ledger.Observe(tracking.Observation{TrackID: 1, BBox: box(21), Crop: bigSharp, Timestamp: 0.3, FrameIndex: 3})
	assert.Equal(t, 3, track.Golden.FrameIndex)
	assert.InDelta(t, 0.3, track.Golden.Timestamp, 1e-9)

	// Sharper but smaller: rejected.
	ledger.Observe(tracking.Observation{TrackID: 1, BBox: box(8), Crop: smallerSharp, Timestamp: 0.4, FrameIndex: 4})
	assert.Equal(t, 3, track.Golden.FrameIndex)
	assert.Equal(t, 4, track.Frames)
}

func TestGoldenAreaNeverDecreases(t *testing.T) {
	ledger := tracking.NewLedger(tracking.Options{})
	sizes := []float64{30, 12, 45, 44, 45, 60, 10}
	var last float64
	for i, size := range sizes {
		crop := testsupport.CheckerImage(int(size), int(size), 1)
		track := ledger.Observe(tracking.Observation{TrackID: 9, BBox: box(size), Crop: crop, Timestamp: float64(i), FrameIndex: i})
		require.True(t, track.HasGolden())
		assert.GreaterOrEqual(t, track.Golden.Area, last)
		last = track.Golden.Area
	}
	assert.Equal(t, 3600.0, last)
}

func TestOfferLocalKeepsHighestConfidence(t *testing.T) {
	ledger := tracking.NewLedger(tracking.Options{})
	ledger.Observe(tracking.Observation{TrackID: 2, BBox: box(5)})

	assert.True(t, ledger.OfferLocal(2, tracking.LocalCandidate{Text: "KA01AB1234", Confidence: 0.5}))
	assert.False(t, ledger.OfferLocal(2, tracking.LocalCandidate{Text: "KA01AB1284", Confidence: 0.5}))
	assert.True(t, ledger.OfferLocal(2, tracking.LocalCandidate{Text: "KA01AB1235", Confidence: 0.7}))
	assert.False(t, ledger.OfferLocal(3, tracking.LocalCandidate{Text: "X", Confidence: 1}))
	assert.Equal(t, "KA01AB1235", ledger.Get(2).Local.Text)
}

func TestActiveCountAndOrder(t *testing.T) {
	ledger := tracking.NewLedger(tracking.Options{})
	ledger.Observe(tracking.Observation{TrackID: 5, BBox: box(5), Timestamp: 0})
	ledger.Observe(tracking.Observation{TrackID: 3, BBox: box(5), Timestamp: 2.5})
	ledger.Observe(tracking.Observation{TrackID: 4, BBox: box(5), Timestamp: 3.9})

	assert.Equal(t, 2, ledger.ActiveCount(4.0, 2.0))
	ids := make([]int, 0, 3)
	for _, track := range ledger.Tracks() {
		ids = append(ids, track.ID)
	}
	assert.Equal(t, []int{5, 3, 4}, ids)
}

func TestDisplacementTracksFirstCentre(t *testing.T) {
	ledger := tracking.NewLedger(tracking.Options{})
	ledger.Observe(tracking.Observation{TrackID: 1, BBox: tracking.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}})
	track := ledger.Observe(tracking.Observation{TrackID: 1, BBox: tracking.BBox{X1: 3, Y1: 4, X2: 13, Y2: 14}})
	assert.InDelta(t, 5.0, track.Displacement, 1e-9)
}

func TestSignatureRefreshCadence(t *testing.T) {
	red := testsupport.SolidImage(16, 16, colorRGBA(200, 10, 10))
	blue := testsupport.SolidImage(16, 16, colorRGBA(10, 10, 200))
	ledger := tracking.NewLedger(tracking.Options{SignatureInterval: 3})

	track := ledger.Observe(tracking.Observation{TrackID: 1, BBox: box(16), Crop: red})
	first := track.Signature
	require.NotEmpty(t, first)

	ledger.Observe(tracking.Observation{TrackID: 1, BBox: box(16), Crop: blue})
	assert.Equal(t, first, track.Signature, "signature refreshes only on cadence")

	ledger.Observe(tracking.Observation{TrackID: 1, BBox: box(16), Crop: blue})
	assert.NotEqual(t, first, track.Signature)

	var sig tracking.Signature
	require.NoError(t, json.Unmarshal([]byte(track.Signature), &sig))
	assert.Len(t, sig.Hue, 8)
	assert.Len(t, sig.Saturation, 8)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "t12", tracking.Key(-1, 12))
	assert.Equal(t, "c2-t12", tracking.Key(2, 12))
}
