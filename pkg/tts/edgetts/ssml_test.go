package edgetts

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ssmlDoc struct {
	Lang  string `xml:"lang,attr"`
	Voice struct {
		Name string `xml:"name,attr"`
		Text string `xml:",chardata"`
	} `xml:"voice"`
}

func TestBuildSSMLRoundTripsNarration(t *testing.T) {
	tests := map[string]string{
		"plain":        "Born in Lyon, 1921.",
		"ampersand":    "Moved in with Anna & Karl",
		"markup":       "<b>Left</b> for New York",
		"quotes":       `She called it "the long winter" and didn't look back`,
		"multilingual": "Émigré à Montréal, ça va",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			raw := buildSSML("fr-FR-DeniseNeural", text)
			assert.False(t, strings.Contains(raw, "<b>"), "markup must be escaped")

			var doc ssmlDoc
			require.NoError(t, xml.Unmarshal([]byte(raw), &doc))
			assert.Equal(t, "fr-FR", doc.Lang)
			assert.Equal(t, "fr-FR-DeniseNeural", doc.Voice.Name)
			assert.Equal(t, text, doc.Voice.Text)
		})
	}
}
