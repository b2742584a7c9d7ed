// Package voices maps a language selection to the two podcast hosts and the
// synthesis voice each of them speaks with.
package voices

import (
	"sort"
	"strings"
)

// DefaultLanguage is used for unknown or empty selectors.
const DefaultLanguage = "english"

// Persona is a named host bound to a synthesis voice.
type Persona struct {
	DisplayName string
	VoiceID     string
}

// Pair holds the two hosts of a language in conversation order.
type Pair struct {
	First  Persona
	Second Persona
}

// VoiceFor returns the voice of the named speaker. Any name other than the
// first host's speaks with the second host's voice.
func (p Pair) VoiceFor(speaker string) string {
	if speaker == p.First.DisplayName {
		return p.First.VoiceID
	}

	return p.Second.VoiceID
}

// DefaultPairs returns the built-in host table keyed by lower-case language.
func DefaultPairs() map[string]Pair {
	return map[string]Pair{
		"english": {
			First:  Persona{DisplayName: "Alex", VoiceID: "en-US-GuyNeural"},
			Second: Persona{DisplayName: "Jamie", VoiceID: "en-US-JennyNeural"},
		},
		"spanish": {
			First:  Persona{DisplayName: "Alejandro", VoiceID: "es-ES-AlvaroNeural"},
			Second: Persona{DisplayName: "Camila", VoiceID: "es-ES-ElviraNeural"},
		},
		"french": {
			First:  Persona{DisplayName: "Alexandre", VoiceID: "fr-FR-HenriNeural"},
			Second: Persona{DisplayName: "Juliette", VoiceID: "fr-FR-DeniseNeural"},
		},
		"german": {
			First:  Persona{DisplayName: "Alexander", VoiceID: "de-DE-ConradNeural"},
			Second: Persona{DisplayName: "Julia", VoiceID: "de-DE-KatjaNeural"},
		},
		"hindi": {
			First:  Persona{DisplayName: "Aarav", VoiceID: "hi-IN-MadhurNeural"},
			Second: Persona{DisplayName: "Diya", VoiceID: "hi-IN-SwaraNeural"},
		},
		"chinese": {
			First:  Persona{DisplayName: "Wei", VoiceID: "zh-CN-YunxiNeural"},
			Second: Persona{DisplayName: "Li", VoiceID: "zh-CN-XiaoxiaoNeural"},
		},
		"arabic": {
			First:  Persona{DisplayName: "Tariq", VoiceID: "ar-SA-HamedNeural"},
			Second: Persona{DisplayName: "Fatima", VoiceID: "ar-SA-ZariyahNeural"},
		},
	}
}

// Registry resolves language selectors to host pairs. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	pairs    map[string]Pair
	fallback string
}

// NewRegistry builds a registry from the default table with overrides applied.
// Override fields left empty keep the default value; overrides for languages
// not in the default table are added as long as both hosts are complete.
// An unknown fallback language falls back to DefaultLanguage.
func NewRegistry(fallback string, overrides map[string]Pair) *Registry {
	pairs := DefaultPairs()

	for language, override := range overrides {
		key := normalize(language)
		if key == "" {
			continue
		}

		merged, known := pairs[key]
		merged.First = mergePersona(merged.First, override.First)
		merged.Second = mergePersona(merged.Second, override.Second)

		if !known && !isComplete(merged) {
			continue
		}

		pairs[key] = merged
	}

	fallbackKey := normalize(fallback)
	if _, ok := pairs[fallbackKey]; !ok {
		fallbackKey = DefaultLanguage
	}

	return &Registry{pairs: pairs, fallback: fallbackKey}
}

// Lookup returns the host pair for a language, case-insensitively. Unknown or
// empty selectors resolve to the fallback language.
func (r *Registry) Lookup(language string) Pair {
	pair, ok := r.pairs[normalize(language)]
	if !ok {
		return r.pairs[r.fallback]
	}

	return pair
}

// Resolve is Lookup that also reports the language key actually used.
func (r *Registry) Resolve(language string) (string, Pair) {
	key := normalize(language)

	pair, ok := r.pairs[key]
	if !ok {
		return r.fallback, r.pairs[r.fallback]
	}

	return key, pair
}

// Languages lists the supported selectors in alphabetical order.
func (r *Registry) Languages() []string {
	out := make([]string, 0, len(r.pairs))
	for language := range r.pairs {
		out = append(out, language)
	}

	sort.Strings(out)

	return out
}

func normalize(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

func mergePersona(base, override Persona) Persona {
	if override.DisplayName != "" {
		base.DisplayName = override.DisplayName
	}

	if override.VoiceID != "" {
		base.VoiceID = override.VoiceID
	}

	return base
}

func isComplete(pair Pair) bool {
	return pair.First.DisplayName != "" && pair.First.VoiceID != "" &&
		pair.Second.DisplayName != "" && pair.Second.VoiceID != ""
}
