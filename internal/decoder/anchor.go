package decoder

import (
	"encoding/base64"
	"errors"

	"github.com/mr-tron/base58"
)

// programDataPrefix introduces base64-encoded anchor event payloads in
// transaction logs. The payload is an 8-byte event discriminator followed
// by the borsh-encoded event body.
const programDataPrefix = "Program data: "

// discriminator is the 8-byte anchor event tag.
type discriminator [8]byte

var errShortPayload = errors.New("event payload shorter than discriminator")

// decodeProgramData splits a base64 anchor event payload into its
// discriminator and borsh body.
func decodeProgramData(encoded string) (discriminator, []byte, error) {
	var disc discriminator
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return disc, nil, err
	}
	if len(raw) < 8 {
		return disc, nil, errShortPayload
	}
	copy(disc[:], raw[:8])
	return disc, raw[8:], nil
}

// pubkey is a 32-byte Solana account address as it appears in borsh
// payloads.
type pubkey [32]byte

func (p pubkey) String() string {
	return base58.Encode(p[:])
}
