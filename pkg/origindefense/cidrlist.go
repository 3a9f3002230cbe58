package origindefense

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

var errEmptyList = errors.New("origindefense: empty range list")

// FetchCIDRs reads a plain-text list, one range per line. Blank lines and
// lines starting with '#' are skipped; a line that does not parse fails the
// whole list.
func FetchCIDRs(ctx context.Context, client *http.Client, url string) ([]*net.IPNet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("origindefense: list status %d", resp.StatusCode)
	}
	return parseCIDRs(io.LimitReader(resp.Body, 1<<20))
}

func parseCIDRs(r io.Reader) ([]*net.IPNet, error) {
	var out []*net.IPNet
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		_, n, err := net.ParseCIDR(line)
		if err != nil {
			return nil, fmt.Errorf("origindefense: bad range %q: %w", line, err)
		}
		out = append(out, n)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errEmptyList
	}
	return out, nil
}

// Poll merges the list into the allow set now and then every period.
func (m *Middleware) Poll(ctx context.Context, client *http.Client, url string, period time.Duration) {
	for {
		if cidrs, err := FetchCIDRs(ctx, client, url); err == nil {
			m.AddCIDRs(cidrs)
			m.l.Info("origin_defense_list_sync_ok", "ranges", len(cidrs))
		} else {
			m.l.Error("origin_defense_list_sync_error", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(period):
		}
	}
}
