package chromedp_crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/user/knowledge-service/internal/repository"
)

func TestBrowserRelay_WaitsForSlot(t *testing.T) {
	relay := NewBrowserRelay(1, time.Second, 0, nil)
	defer relay.Close()

	relay.slots <- struct{}{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := relay.Extract(ctx, "https://example.com")
	assert.ErrorIs(t, err, repository.ErrExtractionTimeout)
}

func TestNewBrowserRelay_Defaults(t *testing.T) {
	relay := NewBrowserRelay(0, time.Second, 3, nil)
	defer relay.Close()

	assert.Equal(t, 1, cap(relay.slots))
	assert.Equal(t, 3, relay.maxLinks)
}
