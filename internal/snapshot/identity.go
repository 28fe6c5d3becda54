package snapshot

import (
	"time"

	"github.com/google/uuid"

	"github.com/coachpo/scribe/internal/gamemode"
	"github.com/coachpo/scribe/internal/schema"
)

// Namespace scopes snapshot identifiers. Changing it re-keys every stored snapshot.
var Namespace = uuid.MustParse("6f1c2d8e-3b4a-5c6d-9e7f-0a1b2c3d4e5f")

// Identify derives the snapshot ID from (account, mode, fetch time). Equal inputs always yield
// the same ID, so re-ingesting the same instant is idempotent at the store. Account spelling is
// folded and the timestamp is taken in UTC at nanosecond precision.
func Identify(account string, mode gamemode.Mode, fetchedAt time.Time) string {
	name := schema.AccountKey(account) + "\x00" + string(mode) + "\x00" + fetchedAt.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(Namespace, []byte(name)).String()
}
