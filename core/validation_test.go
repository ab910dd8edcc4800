package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateContent(t *testing.T) {
	assert.NoError(t, ValidateContent("some text"))

	err := ValidateContent("")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestValidateMetadata(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		meta := Metadata{
			"source": StringValue("geo"),
			"nested": MapValue(Metadata{"n": NumberValue(1)}),
		}
		assert.NoError(t, ValidateMetadata(meta))
	})

	t.Run("nil is valid", func(t *testing.T) {
		assert.NoError(t, ValidateMetadata(nil))
	})

	t.Run("empty key", func(t *testing.T) {
		meta := Metadata{"": StringValue("x")}
		assert.ErrorIs(t, ValidateMetadata(meta), ErrInvalidMetadata)
	})

	t.Run("unknown kind", func(t *testing.T) {
		meta := Metadata{"bad": {Kind: MetaKind(99)}}
		assert.ErrorIs(t, ValidateMetadata(meta), ErrInvalidMetadata)
	})

	t.Run("nested invalid", func(t *testing.T) {
		meta := Metadata{"outer": MapValue(Metadata{"bad": {}})}
		assert.ErrorIs(t, ValidateMetadata(meta), ErrInvalidMetadata)
	})
}

func TestValidateQueryRequest(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := &QueryRequest{Query: "what is the capital of France?", TopK: 3}
		assert.NoError(t, ValidateQueryRequest(req))
	})

	t.Run("nil request", func(t *testing.T) {
		assert.ErrorIs(t, ValidateQueryRequest(nil), ErrInvalidArgument)
	})

	t.Run("empty query", func(t *testing.T) {
		err := ValidateQueryRequest(&QueryRequest{Query: "", TopK: 3})
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})

	t.Run("zero top_k", func(t *testing.T) {
		err := ValidateQueryRequest(&QueryRequest{Query: "q", TopK: 0})
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.ErrorIs(t, err, ErrInvalidTopK)
	})

	t.Run("negative top_k", func(t *testing.T) {
		err := ValidateQueryRequest(&QueryRequest{Query: "q", TopK: -5})
		assert.ErrorIs(t, err, ErrInvalidTopK)
	})
}
