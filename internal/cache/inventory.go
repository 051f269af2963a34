package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	ClaimKeyPrefix     = "claim:%s"
	ProfileKeyPrefix   = "profile:%d"
	AnalyticsKeyPrefix = "analytics:claims:%s"
)

const (
	ClaimTTL     = 5 * time.Minute
	ProfileTTL   = 5 * time.Minute
	AnalyticsTTL = time.Minute
)

// AnalyticsScopeAll is the analytics scope shared by every reader role.
const AnalyticsScopeAll = "all"

func ClaimKey(id uuid.UUID) string {
	return fmt.Sprintf(ClaimKeyPrefix, id)
}

func ProfileKey(userID uint) string {
	return fmt.Sprintf(ProfileKeyPrefix, userID)
}

func AnalyticsKey(scope string) string {
	return fmt.Sprintf(AnalyticsKeyPrefix, scope)
}

// Invalidate deletes keys, ignoring errors.
func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateClaim(ctx context.Context, ids ...uuid.UUID) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, ClaimKey(id))
	}
	Invalidate(ctx, keys...)
}

func InvalidateProfile(ctx context.Context, userID uint) {
	Invalidate(ctx, ProfileKey(userID))
}

func InvalidateAnalytics(ctx context.Context) {
	Invalidate(ctx, AnalyticsKey(AnalyticsScopeAll))
}
