package codec

// descriptorCIDWrapper is the helper structure entry-id derivation
// hashes on top of a descriptor's own CID. The double-wrap
// (descriptor -> CID -> {descriptorCid} -> CID) is deliberate and
// load-bearing for interoperability with peer implementations; do not
// collapse it into a single hash of the descriptor.
type descriptorCIDWrapper struct {
	DescriptorCid string `cbor:"descriptorCid"`
}

// EntryID computes the entry id of a message descriptor:
//
//	entry_id(descriptor) = cid(encode({descriptorCid: cid(encode(descriptor))}))
func EntryID(descriptor any) (string, error) {
	descriptorCID, err := CID(descriptor)
	if err != nil {
		return "", err
	}

	return CID(descriptorCIDWrapper{DescriptorCid: descriptorCID})
}
