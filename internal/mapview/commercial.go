package mapview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/benjaminillouz/cemedis-website/internal/logger"
)

// Readiness polling defaults: 50 attempts, 100 ms apart.
const (
	DefaultReadyAttempts = 50
	DefaultReadyInterval = 100 * time.Millisecond
)

func readyTimeout(attempts int, interval time.Duration) time.Duration {
	if attempts <= 0 {
		attempts = DefaultReadyAttempts
	}
	if interval <= 0 {
		interval = DefaultReadyInterval
	}
	return time.Duration(attempts) * interval
}

// Readiness is a future completed once, when the SDK script has finished
// loading or has failed to.
type Readiness struct {
	once sync.Once
	done chan struct{}
	err  error
}

func NewReadiness() *Readiness { return &Readiness{done: make(chan struct{})} }

// Complete settles the future. Later calls are ignored.
func (r *Readiness) Complete(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

// Done is closed once Complete has been called.
func (r *Readiness) Done() <-chan struct{} { return r.done }

// Wait blocks until the future completes, ctx ends or timeout elapses.
func (r *Readiness) Wait(ctx context.Context, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-r.done:
		return r.err
	case <-t.C:
		return fmt.Errorf("sdk not ready after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SDKLoader fetches the commercial map SDK.
type SDKLoader interface {
	Load(ctx context.Context) error
}

// HTTPSDKLoader checks that the SDK script is reachable with the given key.
type HTTPSDKLoader struct {
	URL    string
	Key    string
	Client *http.Client
}

func (l HTTPSDKLoader) Load(ctx context.Context) error {
	if l.URL == "" {
		return errors.New("missing sdk url")
	}
	u, err := url.Parse(l.URL)
	if err != nil {
		return err
	}
	if l.Key != "" {
		q := u.Query()
		q.Set("key", l.Key)
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	t0 := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		logger.L().Error("map_sdk_http_error", "err", err)
		return err
	}
	defer resp.Body.Close()
	logger.L().Debug("map_sdk_resp", "status", resp.StatusCode, "duration_ms", time.Since(t0).Milliseconds())
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sdk status %d", resp.StatusCode)
	}
	return nil
}

// StartSDK runs loader in the background and returns its readiness future.
func StartSDK(ctx context.Context, loader SDKLoader) *Readiness {
	r := NewReadiness()
	go func() {
		err := loader.Load(ctx)
		if err != nil {
			logger.L().Warn("map_sdk_load_error", "err", err)
		} else {
			logger.L().Info("map_sdk_loaded")
		}
		r.Complete(err)
	}()
	return r
}

// CommercialEngine needs the external SDK before any drawing call.
type CommercialEngine struct {
	canvas
	sdkURL  string
	ready   *Readiness
	timeout time.Duration
}

func NewCommercialEngine(sdkURL string, ready *Readiness, timeout time.Duration) *CommercialEngine {
	if timeout <= 0 {
		timeout = readyTimeout(0, 0)
	}
	e := &CommercialEngine{sdkURL: sdkURL, ready: ready, timeout: timeout}
	e.reset()
	return e
}

func (e *CommercialEngine) Kind() string { return KindCommercial }

// Init waits for SDK readiness within the bounded timeout.
func (e *CommercialEngine) Init(ctx context.Context) error {
	if err := e.ready.Wait(ctx, e.timeout); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return nil
}

func (e *CommercialEngine) Scene() Scene {
	s := e.scene(KindCommercial)
	s.SDKURL = e.sdkURL
	return s
}
