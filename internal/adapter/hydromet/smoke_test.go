//go:build hydromet

package hydromet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/rise-hydromet-export/internal/domain"
)

// These tests hit the public Hydromet pn-bin service.
// Run with: go test -tags=hydromet ./internal/adapter/hydromet/ -v -count=1

func TestSmoke_DailyReservoirContent(t *testing.T) {
	c := testClient(DefaultBaseURL, true)
	w := domain.Daily.DefaultWindow(time.Now())

	series, err := c.Accessor(domain.Daily).ReadSeries(context.Background(), "JCK", "AF", w)
	require.NoError(t, err)

	for _, p := range series {
		assert.False(t, p.At.Before(w.Start), "point %s before window", p.At)
		assert.False(t, p.At.After(w.End), "point %s after window", p.At)
	}
	t.Logf("JCK AF daily: %d points", len(series))
}

func TestSmoke_UnknownStation(t *testing.T) {
	c := testClient(DefaultBaseURL, true)
	w := domain.Daily.DefaultWindow(time.Now())

	series, err := c.Accessor(domain.Daily).ReadSeries(context.Background(), "ZZZZZ", "AF", w)
	if err != nil {
		t.Logf("unknown station error: %v", err)
		return
	}
	assert.Empty(t, series)
}
