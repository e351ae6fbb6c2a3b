package contexts_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contexthub-backend/domain/contexts"
)

func TestContent_RoundTrip(t *testing.T) {
	original := contexts.NewErrorContent(contexts.ErrorPayload{
		Message:   "connection refused",
		ErrorType: "NetworkError",
		Service:   "checkout",
		Severity:  "high",
	})

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded contexts.Content
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, contexts.TypeError, decoded.Type())
	payload, ok := decoded.ErrorReport()
	require.True(t, ok)
	assert.Equal(t, "connection refused", payload.Message)
	assert.Equal(t, "checkout", payload.Service)
}

func TestContent_UnmarshalRejectsTagPayloadMismatch(t *testing.T) {
	// Deployment tag with a log payload instead of a deployment payload
	raw := `{"type":"deployment","log":{"source":"ci","lines":["done"]}}`

	var decoded contexts.Content
	err := json.Unmarshal([]byte(raw), &decoded)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing deployment payload")
}

func TestContent_UnmarshalRejectsUnknownType(t *testing.T) {
	var decoded contexts.Content
	err := json.Unmarshal([]byte(`{"type":"telepathy"}`), &decoded)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown content type")
}

func TestContent_UnmarshalDefaultsToCustom(t *testing.T) {
	var decoded contexts.Content
	err := json.Unmarshal([]byte(`{"custom":{"key":"value"}}`), &decoded)
	require.NoError(t, err)

	assert.Equal(t, contexts.TypeCustom, decoded.Type())
	payload, ok := decoded.Custom()
	require.True(t, ok)
	assert.Equal(t, "value", payload["key"])
}

func TestContent_UnmarshalRejectsUntaggedTypedPayload(t *testing.T) {
	for name, raw := range map[string]string{
		"no tag":     `{"log":{"source":"ci","lines":["done"]}}`,
		"custom tag": `{"type":"custom","deployment":{"version":"1.2.3"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			var decoded contexts.Content
			err := json.Unmarshal([]byte(raw), &decoded)

			assert.Error(t, err)
			assert.Contains(t, err.Error(), "typed payload")
		})
	}
}

func TestContent_WirePayloadMatchesTag(t *testing.T) {
	content := contexts.NewLogContent(contexts.LogPayload{
		Source: "worker",
		Lines:  []string{"started"},
	})

	key, payload := content.WirePayload()

	assert.Equal(t, "log", key)
	log, ok := payload.(*contexts.LogPayload)
	require.True(t, ok)
	assert.Equal(t, "worker", log.Source)
}

func TestContent_ZeroValueIsZero(t *testing.T) {
	var content contexts.Content
	assert.True(t, content.IsZero())
	assert.False(t, contexts.NewCustomContent(nil).IsZero())
}
