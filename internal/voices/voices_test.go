package voices_test

import (
	"testing"

	"github.com/book-expert/podcast-service/internal/voices"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_LookupIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	registry := voices.NewRegistry(voices.DefaultLanguage, nil)

	pair := registry.Lookup("  SpAnIsH ")
	assert.Equal(t, "Alejandro", pair.First.DisplayName)
	assert.Equal(t, "es-ES-AlvaroNeural", pair.First.VoiceID)
	assert.Equal(t, "Camila", pair.Second.DisplayName)
	assert.Equal(t, "es-ES-ElviraNeural", pair.Second.VoiceID)
}

func TestRegistry_UnknownFallsBackToDefault(t *testing.T) {
	t.Parallel()

	registry := voices.NewRegistry(voices.DefaultLanguage, nil)

	for _, selector := range []string{"", "klingon", "EN"} {
		pair := registry.Lookup(selector)
		assert.Equal(t, "Alex", pair.First.DisplayName, "selector %q", selector)
		assert.Equal(t, "Jamie", pair.Second.DisplayName, "selector %q", selector)
	}

	language, _ := registry.Resolve("klingon")
	assert.Equal(t, "english", language)
}

func TestRegistry_OverridesMergeWithDefaults(t *testing.T) {
	t.Parallel()

	registry := voices.NewRegistry("german", map[string]voices.Pair{
		"English": {First: voices.Persona{VoiceID: "en-GB-RyanNeural"}},
		"italian": {
			First:  voices.Persona{DisplayName: "Marco", VoiceID: "it-IT-DiegoNeural"},
			Second: voices.Persona{DisplayName: "Giulia", VoiceID: "it-IT-ElsaNeural"},
		},
		"dutch": {First: voices.Persona{DisplayName: "Incomplete"}},
	})

	english := registry.Lookup("english")
	assert.Equal(t, "Alex", english.First.DisplayName)
	assert.Equal(t, "en-GB-RyanNeural", english.First.VoiceID)
	assert.Equal(t, "en-US-JennyNeural", english.Second.VoiceID)

	assert.Equal(t, "Marco", registry.Lookup("Italian").First.DisplayName)
	assert.Contains(t, registry.Languages(), "italian")
	assert.NotContains(t, registry.Languages(), "dutch")

	assert.Equal(t, "Alexander", registry.Lookup("unknown").First.DisplayName)
}

func TestPair_VoiceFor(t *testing.T) {
	t.Parallel()

	pair := voices.NewRegistry(voices.DefaultLanguage, nil).Lookup("english")

	assert.Equal(t, "en-US-GuyNeural", pair.VoiceFor("Alex"))
	assert.Equal(t, "en-US-JennyNeural", pair.VoiceFor("Jamie"))
	assert.Equal(t, "en-US-JennyNeural", pair.VoiceFor("Narrator"))
}

func TestRegistry_EveryDefaultPairIsDistinct(t *testing.T) {
	t.Parallel()

	for language, pair := range voices.DefaultPairs() {
		assert.NotEqual(t, pair.First.DisplayName, pair.Second.DisplayName, language)
		assert.NotEmpty(t, pair.First.VoiceID, language)
		assert.NotEmpty(t, pair.Second.VoiceID, language)
	}
}
