package command

import "crypto/rand"

// joinCodeAlphabet is the 62-character URL-safe join-code alphabet.
const joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const joinCodeLength = 8

// newJoinCode generates an 8-character join code from a cryptographic
// source — a join code is a capability token and must not be guessable.
func newJoinCode() (string, error) {
	buf := make([]byte, joinCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, joinCodeLength)
	for i, b := range buf {
		out[i] = joinCodeAlphabet[int(b)%len(joinCodeAlphabet)]
	}
	return string(out), nil
}
