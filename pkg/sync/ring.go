package sync

import (
	"encoding/binary"
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

const virtualNodesPerStripe = 200

// ring consistently maps keys onto a fixed number of stripes. Each stripe owns
// virtualNodes points on the ring, and a key belongs to the stripe owning the
// first point at or after the key's hash.
type ring struct {
	stripes int
	points  *treemap.Map // int64 -> stripe index

	// wrap is the stripe owning the lowest point
	wrap int
}

// newRing places the points of each stripe, named prefix followed by its
// index, by hashing the name's hash together with the point's index.
func newRing(prefix string, stripes, virtualNodes uint) *ring {
	if stripes == 0 {
		stripes = 1
	}

	points := treemap.NewWith(utils.Int64Comparator)
	nameHash := make([]byte, 8)
	nodeIndex := make([]byte, 4)
	for stripe := uint(0); stripe < stripes; stripe++ {
		h, _ := murmur3.Sum128([]byte(fmt.Sprintf("%s%d", prefix, stripe)))
		binary.LittleEndian.PutUint64(nameHash, h)

		for node := uint(0); node < virtualNodes; node++ {
			binary.LittleEndian.PutUint32(nodeIndex, uint32(node))

			hasher := murmur3.New128()
			hasher.Write(nameHash)
			hasher.Write(nodeIndex)
			point, _ := hasher.Sum128()
			points.Put(int64(point), int(stripe))
		}
	}

	r := &ring{stripes: int(stripes), points: points}
	if _, stripe := points.Min(); stripe != nil {
		r.wrap = stripe.(int)
	}
	return r
}

func (r *ring) stripe(key []byte) int {
	hash, _ := murmur3.Sum128(key)
	if _, stripe := r.points.Ceiling(int64(hash)); stripe != nil {
		return stripe.(int)
	}
	return r.wrap
}
