package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

var traits = []string{
	"Steady", "Nimble", "Precise", "Curious", "Patient",
	"Sharp", "Tidy", "Keen", "Quiet", "Sturdy",
	"Lucid", "Brisk", "Careful", "Clever", "Candid",
}

var crafts = []string{
	"Builder", "Drafter", "Coder", "Writer", "Designer",
	"Editor", "Tester", "Analyst", "Planner", "Tinkerer",
	"Maker", "Scribe", "Mapper", "Framer", "Fixer",
}

// DisplayNamePattern matches names produced by GenerateDisplayName
var DisplayNamePattern = regexp.MustCompile(`^[A-Z][a-z]+_[A-Z][a-z]+_\d{4}$`)

// GenerateDisplayName returns a placeholder profile name like "Keen_Drafter_0427"
func GenerateDisplayName() (string, error) {
	trait, err := pick(traits)
	if err != nil {
		return "", fmt.Errorf("failed to pick trait: %w", err)
	}
	craft, err := pick(crafts)
	if err != nil {
		return "", fmt.Errorf("failed to pick craft: %w", err)
	}
	suffix, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate suffix: %w", err)
	}
	return fmt.Sprintf("%s_%s_%04d", trait, craft, suffix.Int64()), nil
}

func pick(words []string) (string, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return "", err
	}
	return words[idx.Int64()], nil
}
