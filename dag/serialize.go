package dag

import (
	"encoding/json"
	"fmt"

	cbor "github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	mc "github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"
)

func (f *Forest) ToCBOR() ([]byte, error) {
	return cbor.Marshal(f)
}

func (f *Forest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(f, "", "  ")
}

func FromCBOR(data []byte) (*Forest, error) {
	var f Forest
	if err := cbor.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	f.reindex()
	return &f, nil
}

func FromJSON(data []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	f.reindex()
	return &f, nil
}

// Fingerprint is a CIDv1 over the CBOR encoding of the forest. Two
// reconstructions with identical structure share a fingerprint.
func (f *Forest) Fingerprint() (cid.Cid, error) {
	data, err := f.ToCBOR()
	if err != nil {
		return cid.Undef, err
	}

	pref := cid.Prefix{
		Version:  1,
		Codec:    uint64(mc.Cbor),
		MhType:   mh.SHA2_256,
		MhLength: -1,
	}

	return pref.Sum(data)
}

func (f *Forest) validate() error {
	check := func(list []NodeIndex, what string) error {
		for _, index := range list {
			if index < 0 || int(index) >= len(f.Nodes) {
				return fmt.Errorf("%s references missing node %d", what, index)
			}
		}
		return nil
	}

	for _, named := range []struct {
		list []NodeIndex
		what string
	}{
		{f.Roots, "roots"},
		{f.Queries, "queries"},
		{f.Responses, "responses"},
		{f.Providers, "providers"},
	} {
		if err := check(named.list, named.what); err != nil {
			return err
		}
	}

	for i, node := range f.Nodes {
		what := fmt.Sprintf("node %d", i)
		if err := check(node.Answers, what); err != nil {
			return err
		}
		if err := check(node.Children, what); err != nil {
			return err
		}
		if err := check(node.Parents, what); err != nil {
			return err
		}
	}

	return nil
}
