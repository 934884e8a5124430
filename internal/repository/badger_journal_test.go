package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evetabi/predict/internal/domain"
	"github.com/evetabi/predict/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestBadgerJournal_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	alice := common.HexToAddress("0xA1")
	bob := common.HexToAddress("0xB0")
	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	j, err := repository.OpenBadgerJournal(dir)
	require.NoError(t, err)

	created := domain.Event{Seq: 1, Type: domain.EventMarketCreated, Actor: alice, Question: "Q?",
		Deadline: at.Add(time.Hour), Resolver: alice, Amount: decimal.Zero, OccurredAt: at}
	require.NoError(t, j.Append(ctx, &created))
	for i, actor := range []common.Address{bob, alice} {
		e := domain.Event{Seq: uint64(i + 2), Type: domain.EventBetPlaced, Actor: actor,
			IsYes: true, Amount: decimal.RequireFromString("1.5"), OccurredAt: at}
		require.NoError(t, j.Append(ctx, &e))
	}

	dup := domain.Event{Seq: 2, Type: domain.EventBetPlaced}
	require.ErrorIs(t, j.Append(ctx, &dup), domain.ErrJournalConflict)
	require.NoError(t, j.Close())

	j, err = repository.OpenBadgerJournal(dir)
	require.NoError(t, err)
	defer j.Close()

	all, err := j.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "Q?", all[0].Question)
	require.True(t, all[1].Amount.Equal(decimal.RequireFromString("1.5")))

	tail, err := j.LoadAfter(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	require.Equal(t, uint64(2), tail[0].Seq)

	byAlice, err := j.ListByActor(ctx, alice, 10, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{3, 1}, []uint64{byAlice[0].Seq, byAlice[1].Seq}, "newest first")

	m0, err := j.ListByMarket(ctx, 0, 2, 1)
	require.NoError(t, err)
	require.Len(t, m0, 2)
	require.Equal(t, uint64(2), m0[0].Seq)

	counts, err := j.CountByType(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[domain.EventMarketCreated])
	require.Equal(t, int64(2), counts[domain.EventBetPlaced])
}
