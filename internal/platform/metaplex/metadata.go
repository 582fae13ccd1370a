// Package metaplex decodes the fixed-layout subset of on-chain NFT metadata
// needed to recover collection membership.
package metaplex

import (
	"bytes"
	"encoding/binary"

	"github.com/Huaoe/ElurcFleet/internal/platform/base58"
)

const (
	nameOffset      = 4
	nameLen         = 32
	symbolOffset    = nameOffset + nameLen
	symbolLen       = 10
	uriOffset       = symbolOffset + symbolLen
	uriLen          = 200
	sellerFeeOffset = uriOffset + uriLen
	hasCreatorsAt   = sellerFeeOffset + 2
	creatorCountAt  = hasCreatorsAt + 1

	// HeaderLen is the minimum record length that can be decoded.
	HeaderLen = creatorCountAt + 1

	creatorLen    = 34
	collectionLen = 32
)

// Collection is the collection reference embedded in NFT metadata.
type Collection struct {
	Key      [collectionLen]byte
	Verified bool
}

// Address returns the collection key as a base58 address.
func (c Collection) Address() string {
	return base58.Encode(c.Key[:])
}

type Metadata struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	HasCreators          bool
	CreatorCount         uint8
	// Collection is nil when the record declares none or is too short to carry one.
	Collection *Collection
}

// Decode parses raw account bytes. It reports false when the record is shorter than the header.
func Decode(raw []byte) (Metadata, bool) {
	if len(raw) < HeaderLen {
		return Metadata{}, false
	}
	md := Metadata{
		Name:                 trimNUL(raw[nameOffset : nameOffset+nameLen]),
		Symbol:               trimNUL(raw[symbolOffset : symbolOffset+symbolLen]),
		URI:                  trimNUL(raw[uriOffset : uriOffset+uriLen]),
		SellerFeeBasisPoints: binary.BigEndian.Uint16(raw[sellerFeeOffset : sellerFeeOffset+2]),
		HasCreators:          raw[hasCreatorsAt] != 0,
		CreatorCount:         raw[creatorCountAt],
	}

	// The creator skip is anchored at the creator-count byte, not after it.
	offset := creatorCountAt
	if md.HasCreators && md.CreatorCount > 0 {
		offset += 1 + int(md.CreatorCount)*creatorLen
	}
	if len(raw) < offset+1+collectionLen+1 {
		return md, true
	}
	if raw[offset] == 0 {
		return md, true
	}
	var c Collection
	copy(c.Key[:], raw[offset+1:offset+1+collectionLen])
	c.Verified = raw[offset+1+collectionLen] != 0
	md.Collection = &c
	return md, true
}

func trimNUL(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}
