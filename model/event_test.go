// model/event_test.go
package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowgate/api/model"
)

func TestMergeEvents_CoalescesConsecutiveTokens(t *testing.T) {
	events := []model.StreamEvent{
		{Kind: model.EventToken, Data: "a"},
		{Kind: model.EventToken, Data: "b"},
		{Kind: model.EventMetadata, Data: `{"source":"doc-1"}`},
		{Kind: model.EventToken, Data: "c"},
	}

	merged := model.MergeEvents(events)

	assert.Len(t, merged, 3)
	assert.Equal(t, model.EventToken, merged[0].Kind)
	assert.Equal(t, "ab", merged[0].Data)
	assert.Equal(t, model.EventMetadata, merged[1].Kind)
	assert.Equal(t, "c", merged[2].Data)
}

func TestMergeEvents_KeepsNonTokenOrder(t *testing.T) {
	events := []model.StreamEvent{
		{Kind: model.EventMetadata, Data: "m1"},
		{Kind: model.EventToken, Data: "x"},
		{Kind: model.EventError, Data: "boom"},
	}

	merged := model.MergeEvents(events)

	assert.Equal(t, events, merged)
}

func TestMergeEvents_Empty(t *testing.T) {
	assert.Empty(t, model.MergeEvents(nil))
}

func TestMergeEvents_AllTokens(t *testing.T) {
	events := []model.StreamEvent{
		{Kind: model.EventToken, Data: "hel"},
		{Kind: model.EventToken, Data: "lo"},
		{Kind: model.EventToken, Data: " world"},
	}

	merged := model.MergeEvents(events)

	assert.Len(t, merged, 1)
	assert.Equal(t, "hello world", merged[0].Data)
}

func TestEncodeDecodeEvents_Roundtrip(t *testing.T) {
	events := []model.StreamEvent{
		{Kind: model.EventToken, Data: "answer"},
		{Kind: model.EventMetadata, Data: `{"chunks":2}`},
	}

	encoded, err := model.EncodeEvents(events)
	assert.NoError(t, err)

	decoded, err := model.DecodeEvents(encoded)
	assert.NoError(t, err)
	assert.Equal(t, events, decoded)
}

func TestDecodeEvents_RejectsPlainText(t *testing.T) {
	_, err := model.DecodeEvents("just some prose, not a frame sequence")
	assert.Error(t, err)
}
