package chromedp_crawler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/knowledge-service/internal/adapter/web"
	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
	"github.com/user/knowledge-service/pkg/logger"
)

const relayConfidence = 0.75

// BrowserRelay renders pages in headless Chrome and parses the resulting DOM.
// It implements ExtractorRepository and serves as the web extractor's fallback.
type BrowserRelay struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	slots       chan struct{}
	timeout     time.Duration
	maxLinks    int
	logger      *zap.Logger
}

// NewBrowserRelay prepares a shared allocator. Chrome itself starts lazily on
// the first Extract call, so constructing a relay never requires a browser.
func NewBrowserRelay(maxConcurrency int, pageLoadTimeout time.Duration, maxLinks int, log *zap.Logger) *BrowserRelay {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(web.DefaultUserAgent),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &BrowserRelay{
		allocCtx:    allocCtx,
		cancelAlloc: cancel,
		slots:       make(chan struct{}, maxConcurrency),
		timeout:     pageLoadTimeout,
		maxLinks:    maxLinks,
		logger:      logger.OrNop(log),
	}
}

// Close shuts the browser down.
func (c *BrowserRelay) Close() {
	c.cancelAlloc()
}

func (c *BrowserRelay) Extract(ctx context.Context, url string) (*entity.SourceBundle, error) {
	select {
	case c.slots <- struct{}{}:
		defer func() { <-c.slots }()
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", repository.ErrExtractionTimeout, ctx.Err())
	}

	taskCtx, cancel := chromedp.NewContext(c.allocCtx)
	defer cancel()
	taskCtx, cancel = context.WithTimeout(taskCtx, c.timeout)
	defer cancel()
	// Honor the caller's deadline as well as the page load timeout.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var (
		mu     sync.Mutex
		status int
	)
	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		mu.Lock()
		if status == 0 {
			status = int(resp.Response.Status)
		}
		mu.Unlock()
	})

	var html, location string
	start := time.Now()
	err := chromedp.Run(taskCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		c.logger.Error("Browser relay failed", zap.String("url", url), zap.Error(err))
		if ctx.Err() != nil || taskCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %v", repository.ErrExtractionTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", repository.ErrExtractionFailed, err)
	}

	mu.Lock()
	code := status
	mu.Unlock()
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return nil, web.StatusError(code)
	}

	page, err := web.ParseHTML(location, []byte(html), c.maxLinks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrExtractionFailed, err)
	}
	c.logger.Info("Rendered page through browser relay",
		zap.String("url", url),
		zap.Int("status", code),
		zap.Duration("duration", time.Since(start)),
	)

	content := page.Content
	content.ExtractionMethod = entity.ExtractionBrowserRelay
	content.ExtractionConfidence = relayConfidence
	return web.BundleFromPage(content, page.Links), nil
}
