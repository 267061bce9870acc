package translate

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"terminly/internal/constants"
)

//go:embed locales/*.json
var localeFS embed.FS

// Translation holds the localized template strings for one language.
type Translation struct {
	Reminder24    string `json:"reminder_24"`
	Reminder2     string `json:"reminder_2"`
	CancelPrompt  string `json:"cancel_prompt"`
	CancelSuccess string `json:"cancel_success"`
	CancelAlready string `json:"cancel_already"`
}

var supported = map[string]bool{"de": true, "fr": true, "it": true}

var (
	mu    sync.Mutex
	cache = make(map[string]*Translation)
)

// Get returns the translation set for the given language tag, falling back to
// the default language when the tag is absent or unsupported.
func Get(lang string) (*Translation, error) {
	key := strings.ToLower(strings.TrimSpace(lang))
	if !supported[key] {
		key = constants.DefaultLanguage
	}

	mu.Lock()
	defer mu.Unlock()

	if tr, ok := cache[key]; ok {
		return tr, nil
	}

	data, err := localeFS.ReadFile("locales/" + key + ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to read locale %q: %w", key, err)
	}

	tr := &Translation{}
	if err := json.Unmarshal(data, tr); err != nil {
		return nil, fmt.Errorf("failed to parse locale %q: %w", key, err)
	}
	cache[key] = tr
	return tr, nil
}

// Render substitutes {{name}} placeholders with the given variables and
// collapses incidental double spaces left by empty substitutions.
func Render(template string, vars map[string]string) string {
	out := template
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	for strings.Contains(out, "  ") {
		out = strings.ReplaceAll(out, "  ", " ")
	}
	return strings.TrimSpace(out)
}
