package gemini

import "strings"

// VoiceProfile describes a prebuilt Gemini TTS voice.
type VoiceProfile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Gender string `json:"gender"`
	Style  string `json:"style"`
}

// Voices lists the prebuilt voices offered for narration.
var Voices = []VoiceProfile{
	{ID: "aoede", Name: "Aoede", Gender: "Female", Style: "Professional, capable, clear, experienced, composed"},
	{ID: "zephyr", Name: "Zephyr", Gender: "Female", Style: "Energetic, bright, youthful, fast-paced, spirited"},
	{ID: "kore", Name: "Kore", Gender: "Female", Style: "Calm, soothing, gentle, relaxed, soft"},
	{ID: "leda", Name: "Leda", Gender: "Female", Style: "Authoritative, formal, direct, sophisticated, commanding"},
	{ID: "algenib", Name: "Algenib", Gender: "Female", Style: "Warm, friendly, confident, engaging, approachable"},
	{ID: "callirrhoe", Name: "Callirrhoe", Gender: "Female", Style: "Expressive, quirky, versatile, distinctive, lively"},
	{ID: "charon", Name: "Charon", Gender: "Male", Style: "Deep, trustworthy, conversational, smooth, steady"},
	{ID: "fenrir", Name: "Fenrir", Gender: "Male", Style: "Resonant, intense, strong, gravelly, dramatic"},
	{ID: "puck", Name: "Puck", Gender: "Male", Style: "Playful, mischievous, energetic, animated, humorous"},
	{ID: "orus", Name: "Orus", Gender: "Male", Style: "Balanced, versatile, neutral, clear, reliable"},
	{ID: "umbriel", Name: "Umbriel", Gender: "Male", Style: "Authoritative, narrator-like, wise, grounded, engaging"},
	{ID: "sadachbia", Name: "Sadachbia", Gender: "Male", Style: "Laid-back, cool, textured, relaxed, casual"},
}

// VoiceByID finds a voice by id or name, case-insensitively.
func VoiceByID(id string) (VoiceProfile, bool) {
	for _, v := range Voices {
		if strings.EqualFold(v.ID, id) {
			return v, true
		}
	}
	return VoiceProfile{}, false
}
