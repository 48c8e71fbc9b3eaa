package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIKnownModels(t *testing.T) {
	tests := []struct {
		model string
		dim   int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			e, err := NewOpenAI("sk-test", tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.dim, e.Dimension())
			assert.Equal(t, "openai", e.ProviderName())
		})
	}
}

func TestNewOpenAIRejectsBadConfig(t *testing.T) {
	_, err := NewOpenAI("", "text-embedding-3-small")
	assert.Error(t, err)

	_, err = NewOpenAI("sk-test", "no-such-model")
	assert.Error(t, err)
}
