package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoik/phishd/internal/domain"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestVerdictStore_SaveLookupRoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := NewVerdictStore(db)
	ctx := context.Background()

	uid := uint32(42)
	v := domain.NewVerdict("m1", []domain.CheckResult{
		{CheckName: "ReturnPathCheck", Points: 3, Reason: "mismatch"},
	}, time.Now(), "a@example.com", "hi", time.Now(), &uid)

	require.NoError(t, store.Save(ctx, v))

	got, err := store.Lookup(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Score)
	require.Len(t, got.Reasons, 1)
	assert.Equal(t, "ReturnPathCheck", got.Reasons[0].CheckName)
	require.NotNil(t, got.IMAPUID)
	assert.Equal(t, uint32(42), *got.IMAPUID)
}

func TestVerdictStore_LookupMissing(t *testing.T) {
	db := openTestDB(t)
	store := NewVerdictStore(db)

	got, err := store.Lookup(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestVerdictStore_RecentVerdictsFiltersByScore(t *testing.T) {
	db := openTestDB(t)
	store := NewVerdictStore(db)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewVerdict("low", nil, time.Now(), "a@x.com", "s", time.Now(), nil)))
	require.NoError(t, store.Save(ctx, domain.NewVerdict("high", []domain.CheckResult{{CheckName: "c", Points: 9}}, time.Now(), "b@x.com", "s", time.Now(), nil)))

	recent, err := store.RecentVerdicts(ctx, 10, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "high", recent[0].MessageID)
}

func TestVerdictStore_UpdateActionAndDelete(t *testing.T) {
	db := openTestDB(t)
	store := NewVerdictStore(db)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewVerdict("m2", nil, time.Now(), "a@x.com", "s", time.Now(), nil)))
	require.NoError(t, store.UpdateAction(ctx, "m2", domain.ActionFlagged))

	got, err := store.Lookup(ctx, "m2")
	require.NoError(t, err)
	require.NotNil(t, got.ActionTaken)
	assert.Equal(t, domain.ActionFlagged, *got.ActionTaken)

	require.NoError(t, store.Delete(ctx, "m2"))
	got, err = store.Lookup(ctx, "m2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestVerdictStore_MarkDomainSafe(t *testing.T) {
	db := openTestDB(t)
	store := NewVerdictStore(db)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewVerdict("m3", nil, time.Now(), "a@evil.com", "s", time.Now(), nil)))
	require.NoError(t, store.Save(ctx, domain.NewVerdict("m4", nil, time.Now(), "b@other.com", "s", time.Now(), nil)))

	flagged := domain.NewVerdict("m5", nil, time.Now(), "c@evil.com", "s", time.Now(), nil)
	require.NoError(t, store.Save(ctx, flagged))
	require.NoError(t, store.UpdateAction(ctx, "m5", domain.ActionFlagged))

	n, err := store.MarkDomainSafe(ctx, "evil.com")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Lookup(ctx, "m3")
	require.NoError(t, err)
	require.NotNil(t, got.ActionTaken)
	assert.Equal(t, domain.ActionMarkedSafe, *got.ActionTaken)

	stillFlagged, err := store.Lookup(ctx, "m5")
	require.NoError(t, err)
	require.NotNil(t, stillFlagged.ActionTaken)
	assert.Equal(t, domain.ActionFlagged, *stillFlagged.ActionTaken)
}

func TestVerdictStore_PurgeOld(t *testing.T) {
	db := openTestDB(t)
	store := NewVerdictStore(db)
	ctx := context.Background()

	oldVerdict := domain.NewVerdict("old", nil, time.Now().AddDate(0, 0, -40), "a@x.com", "s", time.Now(), nil)
	require.NoError(t, store.Save(ctx, oldVerdict))
	require.NoError(t, store.Save(ctx, domain.NewVerdict("fresh", nil, time.Now(), "b@x.com", "s", time.Now(), nil)))

	n, err := store.PurgeOld(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Lookup(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBlacklistStore_ReplaceAllAndCheckDomains(t *testing.T) {
	db := openTestDB(t)
	store := NewBlacklistStore(db)
	ctx := context.Background()

	require.NoError(t, store.ReplaceAll(ctx, []string{"evil.com", "bad.net"}, "hardcoded"))

	results, err := store.CheckDomains(ctx, []string{"evil.com", "good.com"})
	require.NoError(t, err)
	assert.True(t, results["evil.com"])
	assert.False(t, results["good.com"])

	last, ok, err := store.LastUpdated(ctx, "hardcoded")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now(), last, 5*time.Second)

	// A second ReplaceAll for the same source drops domains no longer present.
	require.NoError(t, store.ReplaceAll(ctx, []string{"evil.com"}, "hardcoded"))
	results, err = store.CheckDomains(ctx, []string{"bad.net"})
	require.NoError(t, err)
	assert.False(t, results["bad.net"])
}

func TestAllowlistStore_AddWithUserAndContains(t *testing.T) {
	db := openTestDB(t)
	store := NewAllowlistStore(db)
	ctx := context.Background()

	require.NoError(t, store.AddWithUser(ctx, "trusted.com", "alice"))
	ok, err := store.Contains(ctx, "trusted.com")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Remove(ctx, "trusted.com"))
	ok, err = store.Contains(ctx, "trusted.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDomainSetStores_ContainsIsCaseInsensitive(t *testing.T) {
	db := openTestDB(t)
	store := NewAllowlistStore(db)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "Trusted.COM"))

	ok, err := store.Contains(ctx, "TRUSTED.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTrustedLinkDomainStore_AddAndList(t *testing.T) {
	db := openTestDB(t)
	store := NewTrustedLinkDomainStore(db)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "list-manage.com"))
	all, err := store.AllDomains(ctx)
	require.NoError(t, err)
	assert.Contains(t, all, "list-manage.com")
}

func TestCampaignStore_InsertAndActiveBrands(t *testing.T) {
	db := openTestDB(t)
	store := NewCampaignStore(db)
	ctx := context.Background()

	require.NoError(t, store.InsertBrands(ctx, []string{"ARGENTA", "KBC"}, time.Now(), "advisory-1"))

	active, err := store.ActiveBrands(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"argenta", "kbc"}, active)

	isActive, err := store.IsActiveCampaignBrand(ctx, "argenta")
	require.NoError(t, err)
	assert.True(t, isActive)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCampaignStore_PurgeExpired(t *testing.T) {
	db := openTestDB(t)
	store := NewCampaignStore(db)
	ctx := context.Background()

	require.NoError(t, store.InsertBrands(ctx, []string{"OLDBRAND"}, time.Now().AddDate(0, 0, -100), "advisory-old"))
	require.NoError(t, store.InsertBrands(ctx, []string{"NEWBRAND"}, time.Now(), "advisory-new"))

	n, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	active, err := store.ActiveBrands(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"newbrand"}, active)
}

func TestDatabase_MigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.migrate())
	require.NoError(t, db.migrate())
}
