package agentid

// VerifyChain reports whether every attestation claims the identity derived
// from seed. It checks common authorship only: the per-record signatures are
// not re-verified. An empty chain is vacuously valid; an invalid seed or a nil
// element is not.
func VerifyChain(atts []Attestation, seed string) bool {
	expected, err := Identity(seed)
	if err != nil {
		return false
	}
	for _, att := range atts {
		if att == nil || att.SignerIdentity() != expected {
			return false
		}
	}
	return true
}
