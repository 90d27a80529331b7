package ids

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

func New() string {
	return uuid.NewString()
}

// ComplaintReference returns a customer-facing reference of the form
// CMP-YYYY-NNNNN.
func ComplaintReference(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(100000))
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("CMP-%d-%05d", now.Year(), n.Int64())
}
