package state

import (
	"fmt"
	"math"
	"math/big"

	bin "github.com/gagliardetto/binary"
)

// I80F48 is the fixed-point number the mango-v4 program uses for every
// balance, index and weight: a signed 128-bit integer with 48 fractional
// bits, stored on-chain as 16 little-endian bytes.
type I80F48 struct {
	v *big.Int
}

const i80f48FracBits = 48

var (
	i80f48One = new(big.Int).Lsh(big.NewInt(1), i80f48FracBits)
	i128Max   = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	i128Min   = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// ZeroI80F48 returns the zero value.
func ZeroI80F48() I80F48 {
	return I80F48{v: new(big.Int)}
}

// OneI80F48 returns 1.0.
func OneI80F48() I80F48 {
	return I80F48{v: new(big.Int).Set(i80f48One)}
}

// I80F48FromInt converts an integer amount (native units).
func I80F48FromInt(i int64) I80F48 {
	return I80F48{v: new(big.Int).Lsh(big.NewInt(i), i80f48FracBits)}
}

// I80F48FromUint64 converts an unsigned native amount.
func I80F48FromUint64(u uint64) I80F48 {
	return I80F48{v: new(big.Int).Lsh(new(big.Int).SetUint64(u), i80f48FracBits)}
}

// I80F48FromFloat64 converts a float, rounding to the nearest representable
// value. Intended for weights and rates in tests and config, not balances.
func I80F48FromFloat64(f float64) (I80F48, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return I80F48{}, fmt.Errorf("cannot represent %v as I80F48", f)
	}
	r := new(big.Float).SetFloat64(f)
	r.Mul(r, new(big.Float).SetInt(i80f48One))
	out, _ := r.Int(nil)
	if out.Cmp(i128Max) > 0 || out.Cmp(i128Min) < 0 {
		return I80F48{}, fmt.Errorf("%v overflows I80F48", f)
	}
	return I80F48{v: out}, nil
}

// MustI80F48FromFloat64 is I80F48FromFloat64 for known-good constants.
func MustI80F48FromFloat64(f float64) I80F48 {
	x, err := I80F48FromFloat64(f)
	if err != nil {
		panic(err)
	}
	return x
}

// I80F48FromLEBytes decodes the on-chain representation: a two's-complement
// i128 in little-endian byte order.
func I80F48FromLEBytes(b []byte) (I80F48, error) {
	if len(b) != 16 {
		return I80F48{}, fmt.Errorf("I80F48 needs 16 bytes, got %d", len(b))
	}
	be := make([]byte, 16)
	for i := 0; i < 16; i++ {
		be[i] = b[15-i]
	}
	v := new(big.Int).SetBytes(be)
	// Negative when the sign bit of the i128 is set.
	if be[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	return I80F48{v: v}, nil
}

// LEBytes returns the 16-byte on-chain representation.
func (x I80F48) LEBytes() [16]byte {
	v := new(big.Int).Set(x.big())
	if v.Sign() < 0 {
		v.Add(v, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	var out [16]byte
	raw := v.Bytes() // big-endian, minimal length
	for i := 0; i < len(raw) && i < 16; i++ {
		out[i] = raw[len(raw)-1-i]
	}
	return out
}

func (x I80F48) big() *big.Int {
	if x.v == nil {
		return new(big.Int)
	}
	return x.v
}

// Add returns x + y.
func (x I80F48) Add(y I80F48) I80F48 {
	return I80F48{v: new(big.Int).Add(x.big(), y.big())}
}

// Sub returns x - y.
func (x I80F48) Sub(y I80F48) I80F48 {
	return I80F48{v: new(big.Int).Sub(x.big(), y.big())}
}

// Mul returns x * y, rounding the fractional excess toward negative
// infinity the way the program's fixed-point crate shifts the product.
func (x I80F48) Mul(y I80F48) I80F48 {
	p := new(big.Int).Mul(x.big(), y.big())
	return I80F48{v: p.Rsh(p, i80f48FracBits)}
}

// Div returns x / y rounded toward negative infinity. Panics on division
// by zero, matching integer division semantics.
func (x I80F48) Div(y I80F48) I80F48 {
	n := new(big.Int).Mul(x.big(), i80f48One)
	return I80F48{v: floorDiv(n, y.big())}
}

// floorDiv computes floor(a/b). Quo rounds toward zero, which is one off
// for negative quotients with a remainder.
func floorDiv(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 && (a.Sign() < 0) != (b.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
	}
	return q
}

// Neg returns -x.
func (x I80F48) Neg() I80F48 {
	return I80F48{v: new(big.Int).Neg(x.big())}
}

// Abs returns |x|.
func (x I80F48) Abs() I80F48 {
	return I80F48{v: new(big.Int).Abs(x.big())}
}

// Cmp returns -1, 0 or 1.
func (x I80F48) Cmp(y I80F48) int {
	return x.big().Cmp(y.big())
}

// Max returns the larger of x and y.
func (x I80F48) Max(y I80F48) I80F48 {
	if x.Cmp(y) >= 0 {
		return x
	}
	return y
}

func (x I80F48) IsZero() bool     { return x.big().Sign() == 0 }
func (x I80F48) IsPositive() bool { return x.big().Sign() > 0 }
func (x I80F48) IsNegative() bool { return x.big().Sign() < 0 }

// Float64 converts to float64, losing precision beyond the mantissa.
func (x I80F48) Float64() float64 {
	f := new(big.Float).SetInt(x.big())
	f.Quo(f, new(big.Float).SetInt(i80f48One))
	out, _ := f.Float64()
	return out
}

// Floor returns the integer part as int64, truncated toward negative infinity.
func (x I80F48) Floor() int64 {
	d := new(big.Int)
	m := new(big.Int)
	d.DivMod(x.big(), i80f48One, m)
	return d.Int64()
}

func (x I80F48) String() string {
	return fmt.Sprintf("%g", x.Float64())
}

// UnmarshalWithDecoder implements bin.BinaryUnmarshaler so I80F48 fields
// decode transparently inside account structs.
func (x *I80F48) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	raw, err := decoder.ReadNBytes(16)
	if err != nil {
		return fmt.Errorf("read I80F48: %w", err)
	}
	v, err := I80F48FromLEBytes(raw)
	if err != nil {
		return err
	}
	*x = v
	return nil
}

// MarshalWithEncoder implements bin.BinaryMarshaler.
func (x I80F48) MarshalWithEncoder(encoder *bin.Encoder) error {
	b := x.LEBytes()
	return encoder.WriteBytes(b[:], false)
}
