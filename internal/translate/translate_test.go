package translate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	tests := []struct {
		name string
		lang string
		want string
	}{
		{name: "german", lang: "de", want: "Erinnerung"},
		{name: "french", lang: "fr", want: "Rappel"},
		{name: "italian", lang: "it", want: "Promemoria"},
		{name: "uppercase tag", lang: "FR", want: "Rappel"},
		{name: "unsupported falls back to german", lang: "en", want: "Erinnerung"},
		{name: "empty falls back to german", lang: "", want: "Erinnerung"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := Get(tt.lang)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(tr.Reminder24, tt.want),
				"reminder_24 %q should start with %q", tr.Reminder24, tt.want)
			assert.NotEmpty(t, tr.Reminder2)
			assert.NotEmpty(t, tr.CancelPrompt)
			assert.NotEmpty(t, tr.CancelSuccess)
			assert.NotEmpty(t, tr.CancelAlready)
		})
	}
}

func TestGetCaches(t *testing.T) {
	first, err := Get("de")
	require.NoError(t, err)
	second, err := Get("de")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]string
		want     string
	}{
		{
			name:     "all placeholders substituted",
			template: "Termin bei {{company}} um {{time}}. {{cancel}}",
			vars:     map[string]string{"company": "Acme", "time": "14:30", "cancel": "Absagen: https://x/cancel/1"},
			want:     "Termin bei Acme um 14:30. Absagen: https://x/cancel/1",
		},
		{
			name:     "empty substitution collapses double space",
			template: "Bis bald! {{cancel}}",
			vars:     map[string]string{"cancel": ""},
			want:     "Bis bald!",
		},
		{
			name:     "unknown placeholder left as-is",
			template: "Hallo {{nobody}}",
			vars:     map[string]string{"time": "10:00"},
			want:     "Hallo {{nobody}}",
		},
		{
			name:     "no placeholders",
			template: "Fester Text",
			vars:     nil,
			want:     "Fester Text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.template, tt.vars))
		})
	}
}

func TestRenderRealTemplates(t *testing.T) {
	tr, err := Get("de")
	require.NoError(t, err)

	msg := Render(tr.Reminder2, map[string]string{
		"time": "09:15", "company": "Studio Z", "cancel": "",
	})
	assert.Contains(t, msg, "Studio Z")
	assert.Contains(t, msg, "09:15")
	assert.NotContains(t, msg, "{{")
	assert.NotContains(t, msg, "  ")
	assert.Equal(t, msg, strings.TrimSpace(msg))
}
