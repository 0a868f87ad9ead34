package storage

import (
	"strconv"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"

	"github.com/onexay/gitgraph/internal/types"
)

// HandleFor derives the content-addressed handle of an entity: a base32
// CIDv1 over the sha2-256 of namespace, kind and key. Rescanning the same
// repository yields the same handles.
func HandleFor(namespace string, kind types.EntityKind, key string) (Handle, error) {
	mh, err := multihash.Sum(handlePayload(namespace, string(kind), key), multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	c := gocid.NewCidV1(gocid.Raw, mh)
	encoded, err := multibase.Encode(multibase.Base32, c.Bytes())
	if err != nil {
		return "", err
	}
	return Handle(encoded), nil
}

// handlePayload length-prefixes every part; keys are git paths and may
// contain any separator.
func handlePayload(parts ...string) []byte {
	var buf []byte
	for _, p := range parts {
		buf = strconv.AppendInt(buf, int64(len(p)), 10)
		buf = append(buf, ':')
		buf = append(buf, p...)
	}
	return buf
}
