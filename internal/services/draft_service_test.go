package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kindlecrm/internal/core"
	"kindlecrm/internal/storage"
)

func newDraft(name string) core.Draft {
	return core.NewDraft(core.ComposeRequest{
		DonorName:    name,
		TotalDonated: decimal.NewFromInt(25),
		MessageType:  core.ThankYou,
	}, name+"@x.com", "Dear "+name)
}

func TestDraftServiceSavePublishes(t *testing.T) {
	repo := storage.NewMemoryDrafts()
	pub := &fakePublisher{}
	svc := NewDraftService(repo, pub, nil)

	d, err := svc.Save(context.Background(), newDraft("Alice"))
	require.NoError(t, err)
	assert.NotZero(t, d.ID)
	assert.Equal(t, []int64{d.ID}, pub.ids)

	pending, err := repo.GetPendingSyncDrafts(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestDraftServiceWithoutPublisher(t *testing.T) {
	repo := storage.NewMemoryDrafts()
	svc := NewDraftService(repo, nil, nil)

	_, err := svc.Save(context.Background(), newDraft("Alice"))
	require.NoError(t, err)
	_, err = svc.Save(context.Background(), newDraft("Bob"))
	require.NoError(t, err)

	recent, err := svc.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "Bob", recent[0].DonorName)
	assert.NoError(t, svc.Close())
}

func TestDraftServicePublishFailureKeepsDraft(t *testing.T) {
	repo := storage.NewMemoryDrafts()
	svc := NewDraftService(repo, &fakePublisher{fails: true}, nil)

	d, err := svc.Save(context.Background(), newDraft("Alice"))
	require.NoError(t, err)

	got, err := repo.GetDraft(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SyncPending, got.SyncStatus)
}
