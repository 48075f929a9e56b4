package linkquality

import "math/rand"

const sessionAlphabet = "abcdefghijklmnopqrstuvwxyz"

// randomSessionID returns a random lowercase identifier of the given length.
// It is the default session generator; tests inject a fixed-sequence one
// through WithSessionIDGenerator instead.
func randomSessionID(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = sessionAlphabet[rand.Intn(len(sessionAlphabet))]
	}
	return string(b)
}
