package cardservice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEvaluate_ConfiguredSimilarity(t *testing.T) {
	svc, _ := newTestServiceWith(t, Options{
		CardSimilarity:       map[string]map[string]float64{"a": {"d": 0.5}},
		BackgroundSimilarity: true,
	})

	view, err := svc.Evaluate(context.Background(), "everything/similar/a/", "")
	require.NoError(t, err)
	require.Equal(t, []string{"d"}, ids(view))
	require.False(t, view.Preview)
	require.Empty(t, svc.simQueue)
}

func TestEvaluate_BackgroundSimilarity(t *testing.T) {
	svc, _ := newTestServiceWith(t, Options{BackgroundSimilarity: true})
	ctx := context.Background()

	view, err := svc.Evaluate(ctx, "everything/similar/a/", "")
	require.NoError(t, err)
	require.True(t, view.Preview)
	require.Len(t, svc.simQueue, 1)

	// A second evaluation does not queue the card twice.
	_, err = svc.Evaluate(ctx, "everything/similar/a/", "")
	require.NoError(t, err)
	require.Len(t, svc.simQueue, 1)

	id := <-svc.simQueue
	require.Equal(t, "a", id)
	before := svc.Snapshots().Stable().Generation
	require.NoError(t, svc.fillSimilarity(id))
	require.Greater(t, svc.Snapshots().Stable().Generation, before)

	view, err = svc.Evaluate(ctx, "everything/similar/a/", "")
	require.NoError(t, err)
	require.False(t, view.Preview)
	require.Contains(t, ids(view), "b")
	require.NotContains(t, ids(view), "a")

	// New content invalidates background scores.
	_, err = svc.Rebuild()
	require.NoError(t, err)
	view, err = svc.Evaluate(ctx, "everything/similar/a/", "")
	require.NoError(t, err)
	require.True(t, view.Preview)
}

func TestFillSimilarity_KeepsLiveEdits(t *testing.T) {
	svc, _ := newTestServiceWith(t, Options{BackgroundSimilarity: true})
	edited := *svc.Snapshots().Stable().Cards["d"]
	edited.Title = "Delta edited"
	svc.Snapshots().Edit(&edited)

	require.NoError(t, svc.fillSimilarity("a"))
	live := svc.Snapshots().Live()
	require.NotNil(t, live.EditingCard)
	require.Equal(t, "Delta edited", live.Cards["d"].Title)
	require.NotEmpty(t, live.CardSimilarity["a"])
}

func TestFillSimilarity_UnknownCard(t *testing.T) {
	svc, _ := newTestServiceWith(t, Options{BackgroundSimilarity: true})
	before := svc.Snapshots().Generation()
	require.NoError(t, svc.fillSimilarity("missing"))
	require.Equal(t, before, svc.Snapshots().Generation())
}

func TestRunSimilarity_Disabled(t *testing.T) {
	svc, _ := newTestService(t)
	require.Nil(t, svc.fetcher())
	require.NoError(t, svc.RunSimilarity(context.Background()))
}

func TestRunSimilarity_StopsOnCancel(t *testing.T) {
	svc, _ := newTestServiceWith(t, Options{BackgroundSimilarity: true})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunSimilarity(ctx) }()

	svc.fetcher().Request("a")
	require.Eventually(t, func() bool {
		return len(svc.Snapshots().Stable().CardSimilarity["a"]) > 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
