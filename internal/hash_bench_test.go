package internal

import (
	"fmt"
	"testing"
)

var (
	// challenge nonces as they appear in the manage data value
	nonceInputs = []string{
		"6zaEKdRVJ1S1mw9NaH7ZBFqK3WsmJ6Glv5Fj6hDNC0Rc0yl1xvDM9JTc7bNpk5Lw",
		"rKkbY1NXJgfqmTbj6WzVn6jRKz2Ay1Rw2e6zq3SOu4vNy2m1kCdBjYP8xSpeGbdU",
		"0000000000000000000000000000000000000000000000000000000000000000",
	}

	// account IDs used as account cache keys
	accountInputs = []string{
		"GBDIT5GUJ7R5BXO3GJHFXJ6AZ5UQK6MNOIDMPQUSMXLIHTUNR2Q5CFNF",
		"GAHK7EEG2WWHVKDNT4CEQFZGKF2LGDSW2IVM4S5DP42RBW3K6BTODB4A",
	}
)

func TestFastHashStable(t *testing.T) {
	for _, input := range append(nonceInputs, accountInputs...) {
		if FastHash(input) != FastHash(input) {
			t.Fatalf("FastHash(%q) is not stable", input)
		}
	}

	if FastHash(accountInputs[0]) == FastHash(accountInputs[1]) {
		t.Error("distinct accounts hashed to the same key")
	}
}

func TestSHA256sum(t *testing.T) {
	const want = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := SHA256sum(""); got != want {
		t.Errorf("wanted %s, got: %s", want, got)
	}
}

func BenchmarkSHA256Nonces(b *testing.B) {
	for i := 0; b.Loop(); i++ {
		_ = SHA256sum(nonceInputs[i%len(nonceInputs)])
	}
}

func BenchmarkFastHashAccounts(b *testing.B) {
	for i := 0; b.Loop(); i++ {
		_ = FastHash(accountInputs[i%len(accountInputs)])
	}
}

func BenchmarkFastHashSizes(b *testing.B) {
	for _, size := range []int{56, 64, 256, 1024} {
		input := fmt.Sprintf("%0*d", size, 1)
		b.Run(fmt.Sprintf("%d", size), func(b *testing.B) {
			for b.Loop() {
				_ = FastHash(input)
			}
		})
	}
}
