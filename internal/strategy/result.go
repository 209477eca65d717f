package strategy

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/miradorstack/churn-triage/internal/utils"
)

// Channels are the fixed outreach channels scored in every channel table.
var Channels = []string{"Push", "SMS", "Email", "In-app"}

// Card is one recommended strategy.
type Card struct {
	Title             string   `json:"title"`
	Headline          string   `json:"headline"`
	Desc              string   `json:"desc"`
	Bullets           []string `json:"bullets"`
	KPILeftLabel      string   `json:"kpi_left_label"`
	KPILeftValue      float64  `json:"kpi_left_value"`
	KPILeftDirection  string   `json:"kpi_left_direction"`
	KPIRightLabel     string   `json:"kpi_right_label"`
	KPIRightValue     float64  `json:"kpi_right_value"`
	KPIRightDirection string   `json:"kpi_right_direction"`
}

// ChannelRow scores one outreach channel.
type ChannelRow struct {
	Channel      string `json:"channel"`
	Score        Stars  `json:"score"`
	MessagePoint string `json:"message_point"`
	Reason       string `json:"reason"`
}

// Stars is a 1..5 recommendation score. It accepts JSON numbers or numeric
// strings and rounds fractional values.
type Stars int

// UnmarshalJSON implements json.Unmarshaler.
func (s *Stars) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return err
	}
	*s = Stars(math.Round(f))
	return nil
}

// MessageExample is a sample message for a channel.
type MessageExample struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// Result is a generated marketing strategy.
type Result struct {
	StrategyCards   []Card           `json:"strategy_cards"`
	ChannelTable    []ChannelRow     `json:"channel_table"`
	MessageExamples []MessageExample `json:"message_examples"`
}

var requiredKeys = []string{"strategy_cards", "channel_table", "message_examples"}

// Parse decodes generator output. Text that is not a JSON object as a whole is
// retried on the span between the first '{' and the last '}'. The three
// top-level keys must be present.
func Parse(text string) (Result, error) {
	raw, err := decodeObject(text)
	if err != nil {
		return Result{}, err
	}
	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			return Result{}, utils.External("strategy.Parse", "generator output is missing "+key, nil)
		}
	}

	var out Result
	payload, _ := json.Marshal(raw)
	if err := json.Unmarshal(payload, &out); err != nil {
		return Result{}, utils.External("strategy.Parse", "generator output does not match the schema", err)
	}
	return out.normalize(), nil
}

func decodeObject(text string) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err == nil {
		return raw, nil
	}
	trimmed := strings.TrimSpace(text)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end <= start {
		return nil, utils.External("strategy.Parse", "generator output contains no json object", nil)
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &raw); err != nil {
		return nil, utils.External("strategy.Parse", "generator output is not valid json", err)
	}
	return raw, nil
}

// normalize caps cards at three and examples at four, keeps four bullets per
// card, and clamps channel scores to 1..5.
func (r Result) normalize() Result {
	if len(r.StrategyCards) > 3 {
		r.StrategyCards = r.StrategyCards[:3]
	}
	for i := range r.StrategyCards {
		if len(r.StrategyCards[i].Bullets) > 4 {
			r.StrategyCards[i].Bullets = r.StrategyCards[i].Bullets[:4]
		}
	}
	for i := range r.ChannelTable {
		switch {
		case r.ChannelTable[i].Score < 1:
			r.ChannelTable[i].Score = 1
		case r.ChannelTable[i].Score > 5:
			r.ChannelTable[i].Score = 5
		}
	}
	if len(r.MessageExamples) > 4 {
		r.MessageExamples = r.MessageExamples[:4]
	}
	return r
}
