package dag

import (
	"testing"

	mc "github.com/multiformats/go-multicodec"
)

func TestSerialization(t *testing.T) {
	forest := Build(parseEvents(t,
		"0: querying QmRoot",
		"1: QmRoot says use QmA QmB",
		"2: querying QmA",
		"3: provider: QmP",
	))

	fingerprint, err := forest.Fingerprint()
	if err != nil {
		t.Fatalf("Failed to fingerprint forest: %v", err)
	}

	if fingerprint.Prefix().Codec != uint64(mc.Cbor) {
		t.Errorf("Expected cbor codec, got %d", fingerprint.Prefix().Codec)
	}

	t.Run("CBOR", func(t *testing.T) {
		data, err := forest.ToCBOR()
		if err != nil {
			t.Fatalf("Failed to serialize forest to CBOR: %v", err)
		}

		restored, err := FromCBOR(data)
		if err != nil {
			t.Fatalf("Failed to deserialize forest from CBOR: %v", err)
		}

		restoredFingerprint, err := restored.Fingerprint()
		if err != nil {
			t.Fatalf("Failed to fingerprint restored forest: %v", err)
		}
		if !restoredFingerprint.Equals(fingerprint) {
			t.Errorf("Fingerprint changed after CBOR round trip")
		}

		if _, ok := restored.FindResponse("QmB"); !ok {
			t.Errorf("Response index not rebuilt after CBOR round trip")
		}
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := forest.ToJSON()
		if err != nil {
			t.Fatalf("Failed to serialize forest to JSON: %v", err)
		}

		restored, err := FromJSON(data)
		if err != nil {
			t.Fatalf("Failed to deserialize forest from JSON: %v", err)
		}

		a, ok := restored.FindQuery("QmA")
		if !ok {
			t.Fatalf("Expected QmA after JSON round trip")
		}
		if len(restored.Nodes[a].Parents) != 1 {
			t.Errorf("Expected QmA to keep its parent, got %v", restored.Nodes[a].Parents)
		}
	})

	t.Run("Corrupt", func(t *testing.T) {
		if _, err := FromJSON([]byte(`{"nodes":[],"roots":[3]}`)); err == nil {
			t.Errorf("Expected error for dangling root index")
		}
	})

	t.Run("Changes", func(t *testing.T) {
		other := Build(parseEvents(t,
			"0: querying QmRoot",
			"1: QmRoot says use QmA",
		))
		otherFingerprint, err := other.Fingerprint()
		if err != nil {
			t.Fatalf("Failed to fingerprint forest: %v", err)
		}
		if otherFingerprint.Equals(fingerprint) {
			t.Errorf("Different forests share a fingerprint")
		}
	})
}
