package guide

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/siampass/internal/recommend"
)

const personaPrompt = `You are Namfon, a warm and knowledgeable Thai travel guide inside the Siam Pass app.

Rules:
- Answer questions about places, food, transport, culture and etiquette in Thailand.
- Keep answers short enough to read on a phone: a few sentences or a brief list.
- Recommend specific, real places and say which province they are in.
- Mention prices in Thai baht when you know them.
- If you are unsure, say so rather than inventing details.
- Greet politely and sign off with a friendly Thai phrase now and then.`

const recommendPrompt = `You are a travel recommendation engine for Thailand. Your output must be ONLY a single valid JSON object that conforms to the provided schema. Do not include any other text, prose, or markdown.

For the requested province return:
- "attractions": 5 to 8 places worth visiting.
- "restaurants": 5 to 8 places to eat.

Every item has "name", "description" (one or two sentences), "category" (a short label such as "Temple", "Market", "Beach", "Street Food", "Cafe") and, when known, "location" (district or area) and "priceRange" (for example "฿", "฿฿", "฿฿฿").
Reuse the same category label for similar items so they can be filtered together.`

// recommendTemperature keeps structured answers close to the schema.
const recommendTemperature = 0.3

// recommendationRequest is the user message asking for one province.
func recommendationRequest(province string) string {
	return fmt.Sprintf("Province: %s", province)
}

// itemSchemaFields lists the recommendation item properties in schema order.
var itemSchemaFields = []struct {
	name, desc string
	required   bool
}{
	{"name", "Place name", true},
	{"description", "One or two sentence description", true},
	{"category", "Short category label", true},
	{"location", "District or area", false},
	{"priceRange", "Price level in baht symbols", false},
}

// parseRecommendations decodes a model's JSON answer. Markdown code fences
// around the object are tolerated.
func parseRecommendations(raw string) (recommend.ProvinceData, error) {
	s := stripFences(raw)
	var data recommend.ProvinceData
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return recommend.ProvinceData{}, fmt.Errorf("decoding recommendations: %w", err)
	}
	if data.Attractions == nil {
		data.Attractions = []recommend.Item{}
	}
	if data.Restaurants == nil {
		data.Restaurants = []recommend.Item{}
	}
	return data, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the info string, e.g. "json".
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
