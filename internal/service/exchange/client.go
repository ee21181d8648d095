package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	xhttp "SigPull/pkg/http"
)

// restBase holds the pieces shared by the exchange REST clients: the base
// URL and a JSON GET helper.
type restBase struct {
	baseURL string
	client  *xhttp.Client
}

func newRESTBase(baseURL string, timeout time.Duration) restBase {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return restBase{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// getJSON fetches path with query params and decodes the JSON body into dest.
func (b restBase) getJSON(ctx context.Context, path string, params map[string][]string, dest interface{}) error {
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         b.baseURL + path,
		QueryParams: params,
	}, dest)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	return nil
}

// splitPair splits a normalized BASE/QUOTE symbol.
func splitPair(symbol string) (base, quote string, err error) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed pair symbol %q", symbol)
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), nil
}

func parseFloatField(name, s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", name, s, err)
	}
	return v, nil
}
