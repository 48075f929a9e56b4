package linkquality

import "testing"

func TestRandomSessionID(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := randomSessionID(SessionIDLength)
		if len(id) != SessionIDLength {
			t.Fatalf("Expected length %d, got %q", SessionIDLength, id)
		}
		for _, r := range id {
			if r < 'a' || r > 'z' {
				t.Fatalf("Expected lowercase alphabetic id, got %q", id)
			}
		}
	}
}
