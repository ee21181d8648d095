package reddit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"SigPull/internal/domain/models"
	drepo "SigPull/internal/domain/repository"
	xhttp "SigPull/pkg/http"
)

// Client implements MessageStream by polling the public Reddit listing API
// for new posts in the configured subreddits. There is no persistent
// connection; Connect only validates configuration.
type Client struct {
	baseURL      string
	subreddits   []string
	pollInterval time.Duration
	http         *xhttp.Client

	mu        sync.Mutex
	connected bool
	seen      map[string]float64 // per-subreddit created_utc watermark
}

func New(baseURL, userAgent string, subreddits []string, pollInterval, timeout time.Duration) drepo.MessageStream {
	if baseURL == "" {
		baseURL = "https://www.reddit.com"
	}
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		subreddits:   subreddits,
		pollInterval: pollInterval,
		http: xhttp.NewClient(
			xhttp.WithTimeout(timeout),
			xhttp.WithBaseHeaders(map[string]string{"User-Agent": userAgent}),
		),
		seen:         make(map[string]float64),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	if len(c.subreddits) == 0 {
		return fmt.Errorf("reddit: no subreddits configured")
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

// Subscribe is a no-op; the subreddit set is fixed at construction.
func (c *Client) Subscribe(ctx context.Context) error { return nil }

type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				Name       string  `json:"name"` // fullname, e.g. t3_abc
				Subreddit  string  `json:"subreddit"`
				Title      string  `json:"title"`
				Selftext   string  `json:"selftext"`
				CreatedUTC float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Read polls each subreddit on an interval and emits posts newer than the
// per-subreddit watermark. A failing poll is reported but never stops the
// loop.
func (c *Client) Read(ctx context.Context) (<-chan *models.RawMessage, <-chan error) {
	msgs := make(chan *models.RawMessage, 256)
	errs := make(chan error, 1)

	go func() {
		defer close(msgs)
		defer close(errs)

		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		c.pollAll(ctx, msgs, errs)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !c.IsConnected() {
					return
				}
				c.pollAll(ctx, msgs, errs)
			}
		}
	}()

	return msgs, errs
}

func (c *Client) pollAll(ctx context.Context, msgs chan<- *models.RawMessage, errs chan<- error) {
	for _, sub := range c.subreddits {
		if err := c.poll(ctx, sub, msgs); err != nil {
			select {
			case errs <- fmt.Errorf("reddit poll %s: %w", sub, err):
			default:
			}
		}
	}
}

func (c *Client) poll(ctx context.Context, sub string, msgs chan<- *models.RawMessage) error {
	var l listing
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/r/%s/new.json", c.baseURL, sub),
		QueryParams: map[string][]string{
			"limit": {"25"},
		},
	}, &l)
	if err != nil {
		return err
	}

	c.mu.Lock()
	watermark := c.seen[sub]
	c.mu.Unlock()

	newest := watermark
	// listing is newest-first; walk backwards so messages emit in order
	for i := len(l.Data.Children) - 1; i >= 0; i-- {
		post := l.Data.Children[i].Data
		if post.CreatedUTC <= watermark {
			continue
		}
		if post.CreatedUTC > newest {
			newest = post.CreatedUTC
		}
		text := post.Title
		if post.Selftext != "" {
			text += "\n" + post.Selftext
		}
		m := &models.RawMessage{
			Platform:  models.PlatformReddit,
			Channel:   "r/" + sub,
			MessageID: post.Name,
			Text:      text,
			Timestamp: int64(post.CreatedUTC),
		}
		select {
		case msgs <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	c.seen[sub] = newest
	c.mu.Unlock()
	return nil
}

// Reconnect resets the connected flag; polling restarts on next Read.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	return c.Connect(ctx)
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
