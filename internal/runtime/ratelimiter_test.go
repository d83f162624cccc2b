package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiter_ReadyOncePerPeriod(t *testing.T) {
	now := time.Unix(1000, 0)
	r := NewRateLimiter(10 * time.Second)
	r.nowFunc = func() time.Time { return now }

	require.True(t, r.Ready(), "first call always succeeds")
	require.False(t, r.Ready(), "no time has passed")

	now = now.Add(5 * time.Second)
	require.False(t, r.Ready(), "still within period")

	now = now.Add(6 * time.Second)
	require.True(t, r.Ready(), "period has elapsed")
}
