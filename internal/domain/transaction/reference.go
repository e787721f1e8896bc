package transaction

import (
	"strings"

	"github.com/google/uuid"
)

// RefPrefix marks a value as a merchant-facing transaction reference
const RefPrefix = "TXN_"

// GenerateRef produces a collision-resistant transaction reference. The
// UUID's dashes are stripped so the reference never contains the separator
// characters used by composite keys and the card vault's sealed payloads.
func GenerateRef() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return RefPrefix + strings.ToUpper(raw)
}
