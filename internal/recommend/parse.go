package recommend

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/spigell/mentor-matcher/internal/apperr"
	"github.com/spigell/mentor-matcher/internal/directory"
)

type rankedEntry struct {
	UID               string   `json:"uid"`
	DisplayName       string   `json:"displayName"`
	Bio               string   `json:"bio"`
	Technologies      []string `json:"technologies"`
	YearsOfExperience float64  `json:"yearsOfExperience"`
	Rating            float64  `json:"rating"`
	AIInsight         string   `json:"aiInsight"`
}

type rankingResponse struct {
	TopMentors *[]rankedEntry `json:"topMentors"`
}

// extractJSON returns the first balanced JSON object in raw. Braces inside
// string literals, including escaped quotes, do not count.
func extractJSON(raw string) (string, error) {
	start := strings.IndexByte(raw, '{')
	if start == -1 {
		return "", errors.New("no JSON object in model output")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], nil
			}
		}
	}
	return "", errors.New("unbalanced JSON object in model output")
}

// parseRanking turns model output into at most limit ranked mentors taken from
// candidates. Profile data always comes from candidates; the model only
// contributes the order and the insight.
func parseRanking(raw string, candidates []*directory.Profile, limit int) ([]RankedMentor, error) {
	object, err := extractJSON(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.ParseFailure, err, "extract ranking")
	}

	var resp rankingResponse
	if err := json.Unmarshal([]byte(object), &resp); err != nil {
		return nil, apperr.Wrap(apperr.ParseFailure, err, "decode ranking")
	}
	if resp.TopMentors == nil {
		return nil, apperr.New(apperr.ParseFailure, "ranking has no topMentors")
	}
	if len(*resp.TopMentors) == 0 {
		return nil, apperr.New(apperr.ParseFailure, "ranking topMentors is empty")
	}

	byUID := make(map[string]*directory.Profile, len(candidates))
	for _, c := range candidates {
		byUID[c.UID] = c
	}

	seen := make(map[string]struct{}, len(*resp.TopMentors))
	ranked := make([]RankedMentor, 0, limit)
	for i, entry := range *resp.TopMentors {
		uid := strings.TrimSpace(entry.UID)
		profile, ok := byUID[uid]
		if !ok {
			return nil, apperr.New(apperr.ParseFailure, "topMentors[%d] has unknown uid %q", i, entry.UID)
		}
		if _, dup := seen[uid]; dup {
			return nil, apperr.New(apperr.ParseFailure, "topMentors[%d] repeats uid %q", i, uid)
		}
		seen[uid] = struct{}{}

		insight := strings.TrimSpace(entry.AIInsight)
		if insight == "" {
			return nil, apperr.New(apperr.ParseFailure, "topMentors[%d] has no aiInsight", i)
		}

		if len(ranked) < limit {
			ranked = append(ranked, RankedMentor{Profile: profile, AIInsight: insight})
		}
	}

	return ranked, nil
}
