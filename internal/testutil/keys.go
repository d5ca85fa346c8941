package testutil

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/delegate/internal/ir"
)

// keyNamespace roots every fixture key.
var keyNamespace = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")

// Key returns a stable primary key for row n of table. The same inputs
// always yield the same guid, so fixtures and golden files can share keys
// without spelling them out.
func Key(table string, n int) ir.Guid {
	return ir.Guid(uuid.NewSHA1(keyNamespace, []byte(fmt.Sprintf("%s/%d", table, n))))
}
