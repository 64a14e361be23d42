package recipe

import (
	"encoding/binary"
	"math"

	"github.com/spaolacci/murmur3"
)

const prime64 = 1099511628211

type fnvI64 uint64

func (f *fnvI64) Write(data ...uint64) {
	hash := *f

	if hash == 0 {
		hash = fnvI64(1231)
	}

	for _, d := range data {
		hash ^= fnvI64(d)
		hash *= fnvI64(prime64)
	}

	*f = hash
}

func (f *fnvI64) WriteString(s string) {
	f.Write(uint64(len(s)), murmur3.Sum64([]byte(s)))
}

func (f *fnvI64) WriteFloat(v float64) {
	f.Write(math.Float64bits(v))
}

func (f fnvI64) Value() uint64 {
	return uint64(f)
}

func sum(f fnvI64) uint64 {
	hash := murmur3.New64WithSeed(20171108)
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, f.Value())
	hash.Write(buf)
	return hash.Sum64()
}
