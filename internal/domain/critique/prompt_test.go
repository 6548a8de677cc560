package critique

import (
	"strings"
	"testing"
)

func TestBuildPrompt_Standard(t *testing.T) {
	prompt := BuildPrompt(false)

	if strings.Contains(prompt, `"validation"`) {
		t.Error("standard prompt must not contain the validation schema block")
	}
	for _, key := range []string{"isValid", "figureScore", "backgroundScore", "vibeScore", "finalCritique"} {
		if !strings.Contains(prompt, key) {
			t.Errorf("standard prompt missing key %q", key)
		}
	}
	if !strings.Contains(prompt, "JSON only") {
		t.Error("prompt must mandate JSON-only output")
	}
}

func TestBuildPrompt_Diagnostics(t *testing.T) {
	prompt := BuildPrompt(true)

	if !strings.Contains(prompt, `"validation"`) {
		t.Error("diagnostics prompt must contain the validation schema block")
	}
	for _, key := range []string{
		"isRealPhotograph",
		"aiGeneratedLikelihood",
		"imageQualityScore",
		"excessiveFilterLikelihood",
		"reasons",
	} {
		if !strings.Contains(prompt, key) {
			t.Errorf("diagnostics prompt missing sub-score key %q", key)
		}
	}
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	if BuildPrompt(true) != BuildPrompt(true) || BuildPrompt(false) != BuildPrompt(false) {
		t.Error("BuildPrompt must be a pure function of the flag")
	}
}
