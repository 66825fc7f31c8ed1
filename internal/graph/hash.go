package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainFunc     = "decor/func/v1"
	DomainSpec     = "decor/spec/v1"
	DomainArtifact = "decor/artifact/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FuncID computes the content-addressed identity of a function graph. The
// ID is stable across runs and machines given the same graph; positions do
// not contribute (see CanonicalMap).
func FuncID(f *Func) (string, error) {
	canonical, err := MarshalCanonical(f.CanonicalMap())
	if err != nil {
		return "", fmt.Errorf("FuncID %s: %w", f.Name, err)
	}
	return hashWithDomain(DomainFunc, canonical), nil
}

// MustFuncID is FuncID but panics on error. Use in tests, or on graphs that
// already passed Validate.
func MustFuncID(f *Func) string {
	id, err := FuncID(f)
	if err != nil {
		panic(err)
	}
	return id
}

// SpecKey identifies one specialization of one function: the function's
// content ID plus the label tuple its parameters were called with. Two call
// sites with the same argument labels share a key, and therefore share a
// specialized body.
func SpecKey(funcID string, labels []Label) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = l.String()
	}
	data := funcID + ":" + strings.Join(parts, ",")
	return hashWithDomain(DomainSpec, []byte(data))
}

// ArtifactID computes the identity of a compiled artifact from the source
// function ID and the canonical encoding of the lowered graph. Compiling
// the same source with the same compiler yields the same artifact ID.
func ArtifactID(sourceID string, lowered *Func) (string, error) {
	canonical, err := MarshalCanonical(lowered.CanonicalMap())
	if err != nil {
		return "", fmt.Errorf("ArtifactID %s: %w", lowered.Name, err)
	}
	return hashWithDomain(DomainArtifact, append([]byte(sourceID+":"), canonical...)), nil
}
