package openai

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/carparkfinder/backend/internal/domain/entities"
)

const costCalculatorSystemPrompt = `You are a parking cost calculator for Singapore carparks. Return ONLY valid JSON with this schema:
{
  "total_cost": number (SGD, rounded to 2 decimal places),
  "breakdown": string (step-by-step calculation, e.g. "First 2 hrs free, then 1.5 hrs x $3/hr = $4.50"),
  "explanation": string (brief explanation of the rate structure applied),
  "confidence": "high" | "medium" | "low"
}
Rules:
- "per half hour" rates are charged per started half hour (1.5 hours = 3 half hours).
- When a rate varies by time of day and no time is given, assume daytime rates.
- Per-entry charges apply once.
- Do not wrap the JSON in markdown.`

func buildCostUserPrompt(carparkName, rate string, durationHours float64, day entities.DayType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CARPARK: %s\n", carparkName)
	fmt.Fprintf(&b, "RATE STRUCTURE: %s\n", rate)
	fmt.Fprintf(&b, "PARKING DURATION: %s hours\n", strconv.FormatFloat(durationHours, 'f', -1, 64))
	fmt.Fprintf(&b, "DAY TYPE: %s\n", day)
	b.WriteString("Calculate the exact cost to park for this duration.")
	return b.String()
}

type costPayload struct {
	TotalCost   *float64 `json:"total_cost"`
	Breakdown   string   `json:"breakdown"`
	Explanation string   `json:"explanation"`
	Confidence  string   `json:"confidence"`
}

func parseCostPayload(raw []byte) (*entities.CostQuote, error) {
	var payload costPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if payload.TotalCost == nil {
		return nil, fmt.Errorf("total_cost missing from reply")
	}
	if *payload.TotalCost < 0 {
		return nil, fmt.Errorf("negative total_cost %v", *payload.TotalCost)
	}

	confidence := strings.ToLower(strings.TrimSpace(payload.Confidence))
	switch confidence {
	case "high", "medium", "low":
	default:
		confidence = "high"
	}

	return &entities.CostQuote{
		TotalCost:   *payload.TotalCost,
		Breakdown:   strings.TrimSpace(payload.Breakdown),
		Explanation: strings.TrimSpace(payload.Explanation),
		Confidence:  confidence,
	}, nil
}

// stripCodeFence removes a surrounding markdown code block, if any.
func stripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}
