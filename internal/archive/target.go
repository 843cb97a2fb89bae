package archive

import (
	"context"
	"os"
	"strconv"
	"strings"

	"reportbot/internal/domain"
)

// TargetEnvVar pins the delivery target chat through the environment.
// When set it takes precedence over the persisted value, and
// /set_target writes are refused.
const TargetEnvVar = "TARGET_CHAT_ID"

// EnvTarget returns the environment override, if any. A value that is
// not a valid chat id is treated as unset.
func EnvTarget() (int64, bool) {
	raw := strings.TrimSpace(os.Getenv(TargetEnvVar))
	if raw == "" {
		return 0, false
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return chatID, true
}

// Resolver yields the effective delivery target: the environment
// override when present, otherwise the persisted value.
type Resolver struct {
	Store domain.TargetStore
}

func (r Resolver) Resolve(ctx context.Context) (int64, bool, error) {
	if chatID, ok := EnvTarget(); ok {
		return chatID, true, nil
	}
	if r.Store == nil {
		return 0, false, nil
	}
	return r.Store.TargetChat(ctx)
}
