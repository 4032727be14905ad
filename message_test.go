package mqadapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCommandTarget(t *testing.T) {
	queue, method, err := splitCommandTarget("post-worker/create")
	require.NoError(t, err)
	assert.Equal(t, "post-worker", queue)
	assert.Equal(t, "create", method)
}

func TestSplitCommandTargetInvalid(t *testing.T) {
	for _, target := range []string{"no-slash", "/method", "queue/", ""} {
		_, _, err := splitCommandTarget(target)
		assert.Errorf(t, err, "target %q", target)
	}
}

func TestSplitEventTarget(t *testing.T) {
	topic, eventType, err := splitEventTarget("post-events#created")
	require.NoError(t, err)
	assert.Equal(t, "post-events", topic)
	assert.Equal(t, "created", eventType)
}

func TestMessageDecode(t *testing.T) {
	codec := NewJSONCodec()
	body, err := codec.Marshal(map[string]string{"name": "ok"})
	require.NoError(t, err)

	m := newMessage(body, Headers{HeaderMethod: "get"}, "rh", "url", codec)

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, m.Decode(&out))
	assert.Equal(t, "ok", out.Name)
	assert.Equal(t, "get", m.Method())
}
