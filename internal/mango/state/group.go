package state

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Group is the root account of a mango deployment. Banks, markets and
// accounts all reference their group.
type Group struct {
	PublicKey solana.PublicKey `bin:"-"`

	Admin    solana.PublicKey
	GroupNum uint32
	Bump     uint8
	Reserved [7]byte
}

// GroupSize is the serialized account size including discriminator.
const GroupSize = 8 + 32 + 4 + 1 + 7

// GroupFromAccount decodes a Group account fetched from the chain.
func GroupFromAccount(pubkey solana.PublicKey, data []byte) (*Group, error) {
	payload, err := checkDiscriminator(data, GroupDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", pubkey, err)
	}
	if len(payload) < GroupSize-8 {
		return nil, fmt.Errorf("group %s: %w", pubkey, ErrShortAccountData)
	}

	g := &Group{PublicKey: pubkey}
	pos := 0
	g.Admin = solana.PublicKeyFromBytes(payload[pos : pos+32])
	pos += 32
	g.GroupNum = binary.LittleEndian.Uint32(payload[pos : pos+4])
	pos += 4
	g.Bump = payload[pos]
	pos++
	copy(g.Reserved[:], payload[pos:pos+7])

	return g, nil
}

// PDASeeds returns the seeds the program derives the group address from.
// The group signs vault transfers with these.
func (g *Group) PDASeeds() [][]byte {
	num := make([]byte, 4)
	binary.LittleEndian.PutUint32(num, g.GroupNum)
	return [][]byte{[]byte("Group"), g.Admin.Bytes(), num, {g.Bump}}
}
