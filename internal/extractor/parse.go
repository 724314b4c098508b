package extractor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"voice-answers-go/internal/types"
)

var reSummary = regexp.MustCompile(`(?s)<summary>(.*?)(</summary>|$)`)

// parseClassification reads {"off_topic_answers": [...]} from model text. A
// bare JSON array of indices is accepted as well.
func parseClassification(text string) (types.ClassificationResult, error) {
	var res types.ClassificationResult
	if obj := extractJSON(text); obj != "" {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal([]byte(obj), &probe); err == nil {
			raw, ok := probe["off_topic_answers"]
			if !ok {
				return res, fmt.Errorf("classifier output has no off_topic_answers: %s", obj)
			}
			indices, err := decodeIndices(raw)
			if err != nil {
				return res, err
			}
			res.OffTopicAnswers = indices
			return res, nil
		}
	}
	if arr := extractArray(text); arr != "" {
		indices, err := decodeIndices(json.RawMessage(arr))
		if err != nil {
			return res, err
		}
		res.OffTopicAnswers = indices
		return res, nil
	}
	return res, fmt.Errorf("no JSON found in classifier output: %q", truncate(text, 200))
}

// decodeIndices accepts strings or numbers; models sometimes drop the quotes
// around "-1".
func decodeIndices(raw json.RawMessage) ([]string, error) {
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("off_topic_answers is not a list: %w", err)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			out = append(out, strings.TrimSpace(v))
		case float64:
			out = append(out, fmt.Sprintf("%g", v))
		default:
			return nil, fmt.Errorf("unexpected index %v in off_topic_answers", it)
		}
	}
	return out, nil
}

// parseSummary strips the optional <summary> wrapper.
func parseSummary(text string) string {
	if m := reSummary.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// extractJSON finds the first balanced JSON object in a string and returns it.
// It strips common markdown fences first.
func extractJSON(s string) string {
	return extractBalanced(stripFences(s), '{', '}')
}

func extractArray(s string) string {
	return extractBalanced(stripFences(s), '[', ']')
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, r := range []string{"```json", "```", "`"} {
		s = strings.ReplaceAll(s, r, "")
	}
	return s
}

func extractBalanced(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
