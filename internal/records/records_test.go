package records_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"platewatch/internal/records"
	"platewatch/internal/testsupport"
)

func candidate(plate string, conf float64, prov string) records.Record {
	return records.Record{
		TrackKey:      "t1",
		TrackID:       1,
		ChunkIndex:    -1,
		PlateNumber:   plate,
		Confidence:    conf,
		Provenance:    prov,
		RecheckStatus: records.RecheckSuccess,
	}
}

func TestSupersedesPrecedence(t *testing.T) {
	existing := candidate("KA01AB1234", 0.8, "CLOUD")
	noPlate := candidate(records.NoPlate, 0.95, "LOCAL")

	cases := []struct {
		name      string
		existing  *records.Record
		candidate records.Record
		want      bool
	}{
		{"no existing", nil, candidate("X", 0.1, "LOCAL"), true},
		{"plate beats no plate even with lower confidence", &noPlate, candidate("KA01AB1234", 0.2, "LOCAL"), true},
		{"higher confidence", &existing, candidate("KA01AB1284", 0.81, "CLOUD"), true},
		{"equal confidence", &existing, candidate("KA01AB1284", 0.8, "CLOUD"), false},
		{"lower confidence", &existing, candidate("KA01AB1284", 0.5, "LOCAL"), false},
		{"consensus override", &existing, candidate("KA01AB1284", 0.5, "CONSENSUS"), true},
		{"pattern match override", &existing, candidate("KA01AB1284", 0.5, "LOCAL (Pattern Match)"), true},
		{"no plate never beats plate on precedence", &existing, candidate(records.NoPlate, 0.1, "LOCAL"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, records.Supersedes(tc.existing, tc.candidate))
		})
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	for _, prov := range []string{"LOCAL", "CONSENSUS", "CLOUD (Pattern Match)"} {
		repo := records.NewMemoryRepository()
		cand := candidate("KA01AB1234", 0.7, prov)

		applied, err := records.Upsert(ctx, repo, cand)
		require.NoError(t, err)
		assert.True(t, applied, prov)

		applied, err = records.Upsert(ctx, repo, cand)
		require.NoError(t, err)
		assert.False(t, applied, prov)

		got, err := repo.Get(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, cand, *got)
	}
}

func TestUpsertRequiresKey(t *testing.T) {
	_, err := records.Upsert(context.Background(), records.NewMemoryRepository(), records.Record{})
	assert.Error(t, err)
}

func TestMemoryRepositoryOrdersByTimestamp(t *testing.T) {
	ctx := context.Background()
	repo := records.NewMemoryRepository()
	for _, rec := range []records.Record{
		{TrackKey: "t3", Timestamp: 9},
		{TrackKey: "t1", Timestamp: 2},
		{TrackKey: "t2", Timestamp: 2},
	} {
		require.NoError(t, repo.Put(ctx, rec))
	}
	got := repo.Records()
	keys := []string{got[0].TrackKey, got[1].TrackKey, got[2].TrackKey}
	assert.Equal(t, []string{"t1", "t2", "t3"}, keys)
	assert.Equal(t, 3, repo.Len())
}

func TestStoreRepositoryRoundTripAndIdempotency(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	video := testsupport.NewVideo(t, st, "cam", "/cam.jsonl")
	repo := records.NewStoreRepository(st, video.ID)
	ctx := context.Background()

	cand := records.Record{
		VideoID:       video.ID,
		TrackKey:      "c1-t4",
		TrackID:       4,
		ChunkIndex:    1,
		PlateNumber:   "DL8CAF1234",
		Confidence:    0.88,
		Provenance:    "CONSENSUS",
		VehicleType:   "BUS",
		MakeModel:     "Tata Starbus",
		Color:         "Yellow",
		VehicleInfo:   "Yellow Tata Starbus",
		HelmetStatus:  "N/A",
		Passengers:    30,
		RecheckStatus: records.RecheckSuccess,
		Timestamp:     905.5,
		FrameIndex:    27165,
		BlurScore:     142.25,
		Signature:     "[0.5]",
		RawResponse:   `[{"track_id":4}]`,
		BatchID:       "batch-1",
	}

	applied, err := records.Upsert(ctx, repo, cand)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = records.Upsert(ctx, repo, cand)
	require.NoError(t, err)
	assert.False(t, applied, "re-applying an identical consensus candidate is a no-op")

	got, err := repo.Get(ctx, "c1-t4")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, cand, *got)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	missing, err := repo.Get(ctx, "c9-t9")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
