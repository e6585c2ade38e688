package reward

import "strings"

// codeAlphabet is the character set for minted coupon suffixes.
const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultCouponPrefix is used when a coupon sector has no code template.
const DefaultCouponPrefix = "SPIN"

// Drawn is the outcome of one wheel draw.
type Drawn struct {
	Type  string  `json:"type"`
	Value int64   `json:"value"`
	Code  *string `json:"code,omitempty"`
	Label string  `json:"label"`
}

// Selector picks rewards by weighted probability.
// The random source produces uniform values in [0,1); injecting a fixed
// source makes selection fully deterministic for tests.
type Selector struct {
	rand       func() float64
	codeLength int
}

// NewSelector creates a Selector with the given uniform random source.
func NewSelector(rand func() float64, couponCodeLength int) *Selector {
	if couponCodeLength <= 0 {
		couponCodeLength = 6
	}
	return &Selector{rand: rand, codeLength: couponCodeLength}
}

// Select draws one sector from the table by inverse-CDF sampling.
// Given the same random draw and table, the result is deterministic and
// stable under table order. If floating accumulation exhausts the table
// without selecting, the last sector is returned; a draw never fails.
func (s *Selector) Select(t *Table) (int, Drawn) {
	r := s.rand() * t.TotalWeight()

	cumulative := 0.0
	for i := 0; i < t.Len(); i++ {
		cumulative += t.At(i).Weight
		if r < cumulative {
			return i, s.draw(t.At(i))
		}
	}

	last := t.Len() - 1
	return last, s.draw(t.At(last))
}

// draw materializes a sector into a Drawn reward, minting a coupon code
// where the sector requires one.
func (s *Selector) draw(r Reward) Drawn {
	d := Drawn{
		Type:  r.Type,
		Value: r.Value,
		Label: r.Label,
	}
	if r.Type == TypeCoupon {
		code := s.mintCode(r.CodeTemplate)
		d.Code = &code
	}
	return d
}

// mintCode composes a coupon code from the sector's template prefix and a
// short random alphanumeric suffix. The suffix length keeps collision
// probability low; uniqueness across history is not enforced.
func (s *Selector) mintCode(template string) string {
	prefix := template
	if prefix == "" {
		prefix = DefaultCouponPrefix
	}

	var b strings.Builder
	b.Grow(len(prefix) + s.codeLength)
	b.WriteString(prefix)
	for i := 0; i < s.codeLength; i++ {
		idx := int(s.rand() * float64(len(codeAlphabet)))
		if idx >= len(codeAlphabet) {
			idx = len(codeAlphabet) - 1
		}
		b.WriteByte(codeAlphabet[idx])
	}
	return b.String()
}
