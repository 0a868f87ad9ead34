package graph

import (
	"time"

	"github.com/onexay/gitgraph/internal/types"
)

// Persisted layouts. They spell yyyy-MM-dd, HH:mm:ss Z and
// yyyy-MM-dd HH:mm:ss Z, where Z is an RFC 822 offset such as +0200.
const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04:05 -0700"
	DateTimeLayout = "2006-01-02 15:04:05 -0700"
)

// FormatTimestamp derives every stored representation of an instant. A nil
// location formats in the process local zone.
func FormatTimestamp(t time.Time, loc *time.Location) types.Timestamp {
	if loc == nil {
		loc = time.Local
	}
	in := t.In(loc)
	return types.Timestamp{
		Date:     in.Format(DateLayout),
		Time:     in.Format(TimeLayout),
		DateTime: in.Format(DateTimeLayout),
		Epoch:    t.UnixMilli(),
	}
}
