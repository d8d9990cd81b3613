package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// verifierBytes is the entropy of the PKCE code verifier before encoding.
	verifierBytes = 32

	// stateBytes is the entropy of the state parameter before encoding.
	stateBytes = 32
)

// ChallengeMethod is the only PKCE method Frontier accepts.
const ChallengeMethod = "S256"

// PKCE holds a code verifier and its S256 challenge.
type PKCE struct {
	Verifier  string
	Challenge string
}

// GeneratePKCE returns a fresh verifier and its challenge.
func GeneratePKCE() (*PKCE, error) {
	verifier, err := randomString(verifierBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PKCE verifier: %w", err)
	}
	return &PKCE{Verifier: verifier, Challenge: ChallengeFor(verifier)}, nil
}

// ChallengeFor derives the S256 challenge: base64url(sha256(verifier)), unpadded.
func ChallengeFor(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// GenerateState returns a random state nonce.
func GenerateState() (string, error) {
	state, err := randomString(stateBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return state, nil
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
