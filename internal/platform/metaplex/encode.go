package metaplex

import "encoding/binary"

// Record describes a metadata account to be encoded in the layout Decode reads.
// It is used to build fixtures and local chain fakes.
type Record struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             [][32]byte
	Collection           *Collection
}

func Encode(r Record) []byte {
	buf := make([]byte, HeaderLen)
	copy(buf[nameOffset:nameOffset+nameLen], r.Name)
	copy(buf[symbolOffset:symbolOffset+symbolLen], r.Symbol)
	copy(buf[uriOffset:uriOffset+uriLen], r.URI)
	binary.BigEndian.PutUint16(buf[sellerFeeOffset:], r.SellerFeeBasisPoints)
	if len(r.Creators) > 0 {
		buf[hasCreatorsAt] = 1
		buf[creatorCountAt] = uint8(len(r.Creators))
		for _, c := range r.Creators {
			buf = append(buf, c[:]...)
			buf = append(buf, 0, 0)
		}
	} else {
		// Without creators the collection flag shares the count byte.
		buf = buf[:creatorCountAt]
	}
	if r.Collection == nil {
		return append(buf, make([]byte, 1+collectionLen+1)...)
	}
	buf = append(buf, 1)
	buf = append(buf, r.Collection.Key[:]...)
	if r.Collection.Verified {
		return append(buf, 1)
	}
	return append(buf, 0)
}
