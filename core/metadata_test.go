package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataJSONRoundTrip(t *testing.T) {
	meta := Metadata{
		"source": StringValue("geo"),
		"weight": NumberValue(0.75),
		"public": BoolValue(true),
		"extra": MapValue(Metadata{
			"lang": StringValue("en"),
		}),
	}

	data, err := json.Marshal(meta)
	require.NoError(t, err)

	var decoded Metadata
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, meta, decoded)
}

func TestMetadataJSONRejectsArrays(t *testing.T) {
	var decoded Metadata
	err := json.Unmarshal([]byte(`{"tags":["a","b"]}`), &decoded)
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported JSON value")
}

func TestMetadataJSONRejectsNull(t *testing.T) {
	var decoded Metadata
	err := json.Unmarshal([]byte(`{"source":null}`), &decoded)
	require.Error(t, err)
}

func TestMetadataSortedKeys(t *testing.T) {
	meta := Metadata{
		"zebra": StringValue("z"),
		"alpha": StringValue("a"),
		"mid":   StringValue("m"),
	}
	assert.Equal(t, []string{"alpha", "mid", "zebra"}, meta.SortedKeys())
}

func TestMetadataClone(t *testing.T) {
	meta := Metadata{
		"nested": MapValue(Metadata{"k": StringValue("v")}),
	}
	clone := meta.Clone()
	clone["nested"].Map["k"] = StringValue("changed")
	assert.Equal(t, StringValue("v"), meta["nested"].Map["k"])
}
