package certificate

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/skillforge/pipeline/internal/config"
)

const numberSuffixLen = 6

// base36 without lookalike characters
const numberAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// NewNumber builds a human-facing certificate number of the form
// CERT-<base36 unix seconds>-<random suffix>. Uniqueness is ultimately
// enforced by the database index; the random suffix keeps same-second
// issuances from colliding in practice.
func NewNumber(now time.Time) (string, error) {
	ts := strings.ToUpper(strconv.FormatInt(now.UTC().Unix(), 36))

	suffix := make([]byte, numberSuffixLen)
	max := big.NewInt(int64(len(numberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate certificate number: %w", err)
		}
		suffix[i] = numberAlphabet[n.Int64()]
	}

	return fmt.Sprintf("%s-%s-%s", config.CertNumberPrefix, ts, suffix), nil
}
