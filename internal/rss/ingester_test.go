package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCampaignStore struct {
	inserted map[string][]string // articleTitle -> brands
}

func (f *fakeCampaignStore) ActiveBrands(_ context.Context) ([]string, error) { return nil, nil }
func (f *fakeCampaignStore) IsActiveCampaignBrand(_ context.Context, _ string) (bool, error) {
	return false, nil
}
func (f *fakeCampaignStore) InsertBrands(_ context.Context, brands []string, _ time.Time, articleTitle string) error {
	if f.inserted == nil {
		f.inserted = make(map[string][]string)
	}
	f.inserted[articleTitle] = brands
	return nil
}
func (f *fakeCampaignStore) PurgeExpired(_ context.Context) (int, error) { return 0, nil }
func (f *fakeCampaignStore) LastFetched(_ context.Context) (time.Time, bool, error) {
	return time.Time{}, false, nil
}
func (f *fakeCampaignStore) Count(_ context.Context) (int, error) { return len(f.inserted), nil }

func TestCampaignIngester_Ingest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	store := &fakeCampaignStore{}
	ingester := NewCampaignIngester(srv.URL, store)

	matched, err := ingester.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, matched)
	assert.Contains(t, store.inserted, "Phishing e-mails appear to come from Argenta")
	assert.Equal(t, []string{"argenta"}, store.inserted["Phishing e-mails appear to come from Argenta"])
}
