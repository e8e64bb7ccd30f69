package domain

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BatchReceipt remembers an applied batch so a retried request with the same
// id is answered without writing again.
type BatchReceipt struct {
	bun.BaseModel `bun:"table:availability_batches"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	Fingerprint uuid.UUID `bun:"fingerprint,notnull,type:uuid"`
	Applied     int       `bun:"applied,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

func (r *BatchReceipt) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok && r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Batch is one all-or-nothing write of availability records.
type Batch struct {
	ID      uuid.UUID
	Records []AvailabilityRecord
}

var batchFingerprintSpace = uuid.MustParse("6f1c0a52-8a59-4c43-9a7e-0b6c1f0c2d11")

// Fingerprint identifies the batch payload independently of record order.
func (b Batch) Fingerprint() uuid.UUID {
	lines := make([]string, len(b.Records))
	for i, r := range b.Records {
		lines[i] = r.Key().String() + "=" + strconv.FormatBool(r.IsOpen)
	}
	sort.Strings(lines)
	return uuid.NewSHA1(batchFingerprintSpace, []byte(strings.Join(lines, "\n")))
}
