package reddit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"SigPull/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingBody = `{
  "data": {
	"children": [
	  {"data": {"name": "t3_b", "subreddit": "CryptoCurrency", "title": "ETH long entry 3000", "selftext": "tp 3300 sl 2800", "created_utc": 200}},
	  {"data": {"name": "t3_a", "subreddit": "CryptoCurrency", "title": "BTC to the moon", "selftext": "", "created_utc": 100}}
	]
  }
}`

func TestPollEmitsOldestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/CryptoCurrency/new.json", r.URL.Path)
		assert.Equal(t, "sigpull/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listingBody))
	}))
	defer srv.Close()

	c := New(srv.URL, "sigpull/1.0", []string{"CryptoCurrency"}, time.Hour, time.Second).(*Client)
	require.NoError(t, c.Connect(context.Background()))

	msgs := make(chan *models.RawMessage, 16)
	require.NoError(t, c.poll(context.Background(), "CryptoCurrency", msgs))
	close(msgs)

	var got []*models.RawMessage
	for m := range msgs {
		got = append(got, m)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "t3_a", got[0].MessageID) // oldest first
	assert.Equal(t, "t3_b", got[1].MessageID)
	assert.Equal(t, models.PlatformReddit, got[0].Platform)
	assert.Equal(t, "r/CryptoCurrency", got[0].Channel)
	assert.Equal(t, int64(100), got[0].Timestamp)
	assert.Contains(t, got[1].Text, "tp 3300 sl 2800") // selftext appended
}

func TestPollWatermarkSkipsSeenPosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listingBody))
	}))
	defer srv.Close()

	c := New(srv.URL, "sigpull/1.0", []string{"CryptoCurrency"}, time.Hour, time.Second).(*Client)
	require.NoError(t, c.Connect(context.Background()))

	msgs := make(chan *models.RawMessage, 16)
	require.NoError(t, c.poll(context.Background(), "CryptoCurrency", msgs))
	require.NoError(t, c.poll(context.Background(), "CryptoCurrency", msgs))
	close(msgs)

	n := 0
	for range msgs {
		n++
	}
	assert.Equal(t, 2, n) // second poll emits nothing new
}

func TestPollServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "sigpull/1.0", []string{"CryptoCurrency"}, time.Hour, time.Second).(*Client)
	msgs := make(chan *models.RawMessage, 1)
	assert.Error(t, c.poll(context.Background(), "CryptoCurrency", msgs))
}

func TestConnectRequiresSubreddits(t *testing.T) {
	c := New("http://example.invalid", "ua", nil, time.Hour, time.Second)
	assert.Error(t, c.Connect(context.Background()))
	assert.False(t, c.IsConnected())
}
