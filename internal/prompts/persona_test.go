package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPersonaInstruction(t *testing.T) {
	got := BuildPersonaInstruction("Acme Plumbing", "friendly", "Mon-Fri 9-5")
	assert.Contains(t, got, "Acme Plumbing")
	assert.Contains(t, got, "friendly")
	assert.Contains(t, got, "Mon-Fri 9-5")
}

func TestBuildPersonaInstructionNoTone(t *testing.T) {
	assert.Empty(t, BuildPersonaInstruction("Acme", "", "Mon-Fri 9-5"))
}

func TestBuildPersonaInstructionNoName(t *testing.T) {
	got := BuildPersonaInstruction("", "calm", "")
	assert.Contains(t, got, "the business")
	assert.NotContains(t, got, "Business hours")
}
