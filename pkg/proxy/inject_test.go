package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInjectScriptTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		injected bool
	}{
		{
			name:     "lowercase head",
			body:     `<html><head><title>app</title></head><body></body></html>`,
			injected: true,
		},
		{
			name:     "uppercase head",
			body:     `<HTML><HEAD></HEAD><BODY></BODY></HTML>`,
			injected: true,
		},
		{
			name:     "no head element",
			body:     `<html><body>fragment</body></html>`,
			injected: false,
		},
		{
			name:     "empty document",
			body:     "",
			injected: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out := string(injectScriptTag([]byte(tt.body)))
			if tt.injected {
				assert.Contains(t, out, string(scriptTag))
				assert.Len(t, out, len(tt.body)+len(scriptTag))
			} else {
				assert.Equal(t, tt.body, out)
			}
		})
	}
}

func TestInjectScriptTagPlacement(t *testing.T) {
	t.Parallel()

	body := `<html><head><title>app</title></head><body></body></html>`
	out := string(injectScriptTag([]byte(body)))
	assert.Equal(t,
		`<html><head><title>app</title>`+string(scriptTag)+`</head><body></body></html>`,
		out)
}
