package model

import "strings"

// LanguageInfo holds the code and English name of a story language,
// plus the narration voice used when a story does not pick one.
type LanguageInfo struct {
	Code         string `json:"code"` // e.g., "de"
	Name         string `json:"name"` // e.g., "German"
	DefaultVoice string `json:"defaultVoice"`
}

// SupportedLanguages lists the languages a story can be written in.
var SupportedLanguages = []LanguageInfo{
	{Code: "en", Name: "English", DefaultVoice: "21m00Tcm4TlvDq8ikWAM"},
	{Code: "de", Name: "German", DefaultVoice: "pNInz6obpgDQGcFmaJgB"},
	{Code: "fr", Name: "French", DefaultVoice: "ErXwobaYiN019PkySvjV"},
	{Code: "es", Name: "Spanish", DefaultVoice: "VR6AewLTigWG4xSOukaG"},
	{Code: "it", Name: "Italian", DefaultVoice: "MF3mGyEYCl7XYWbV9V6O"},
	{Code: "nl", Name: "Dutch", DefaultVoice: "TxGEqnHWrfWFTfGW9XjX"},
}

// LanguageByCode returns the language for a code like "de" or "de-DE".
func LanguageByCode(code string) (LanguageInfo, bool) {
	base := strings.ToLower(code)
	if i := strings.IndexByte(base, '-'); i > 0 {
		base = base[:i]
	}
	for _, l := range SupportedLanguages {
		if l.Code == base {
			return l, true
		}
	}
	return LanguageInfo{}, false
}
