package policy

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"time"

	"github.com/garyjia/booking-voucher/internal/domain/entity"
)

// NumberPattern is the external voucher number format
var NumberPattern = regexp.MustCompile(`^VCH-\d{8}-\d{4}$`)

var suffixSpace = big.NewInt(10000)

// NumberGenerator produces candidate voucher numbers
type NumberGenerator interface {
	Generate(now time.Time) (string, error)
}

// RandomNumberGenerator draws the 4 digit suffix from a random source.
// Numbers are not unique on their own; callers retry on collision.
type RandomNumberGenerator struct {
	Source io.Reader
}

// NewRandomNumberGenerator uses crypto/rand
func NewRandomNumberGenerator() *RandomNumberGenerator {
	return &RandomNumberGenerator{Source: rand.Reader}
}

// Generate returns VCH-<YYYYMMDD>-<NNNN> for the UTC date of now
func (g *RandomNumberGenerator) Generate(now time.Time) (string, error) {
	src := g.Source
	if src == nil {
		src = rand.Reader
	}
	n, err := rand.Int(src, suffixSpace)
	if err != nil {
		return "", fmt.Errorf("failed to draw voucher number suffix: %w", err)
	}
	return fmt.Sprintf("VCH-%s-%04d", now.UTC().Format("20060102"), n.Int64()), nil
}

// ReferencePayload is the unsigned QR content stored on the voucher.
// It only identifies the voucher; verification tokens are issued separately.
func ReferencePayload(v *entity.Voucher) string {
	data, _ := json.Marshal(struct {
		V   string `json:"v"`
		T   string `json:"t"`
		N   string `json:"n"`
		Sid string `json:"sid"`
	}{V: "1.0", T: "voucher-ref", N: v.VoucherNumber, Sid: v.ID})
	return base64.StdEncoding.EncodeToString(data)
}
