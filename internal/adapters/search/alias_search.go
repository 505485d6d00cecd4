package search

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/carparkfinder/backend/internal/domain/entities"
	"github.com/carparkfinder/backend/internal/domain/repositories"
)

// noMatch marks a carpark that matched none of the expanded terms.
const noMatch = 999

// AliasConfig is the alias and popular-location register.
type AliasConfig struct {
	MallAliases      map[string][]string `json:"mall_aliases"`
	PopularLocations []string            `json:"popular_locations"`
}

// LoadAliasConfig reads the register from a JSON file.
func LoadAliasConfig(path string) (*AliasConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read search aliases: %w", err)
	}
	var cfg AliasConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse search aliases: %w", err)
	}
	return &cfg, nil
}

// AliasSearch ranks carparks in-process using mall aliases and a list of
// popular destinations.
type AliasSearch struct {
	aliases map[string][]string
	popular []string
}

var _ repositories.CarparkSearchRepository = (*AliasSearch)(nil)

// NewAliasSearch creates an alias search. A nil config searches without aliases.
func NewAliasSearch(cfg *AliasConfig) *AliasSearch {
	s := &AliasSearch{aliases: map[string][]string{}}
	if cfg == nil {
		return s
	}
	for k, v := range cfg.MallAliases {
		s.aliases[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for _, p := range cfg.PopularLocations {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			s.popular = append(s.popular, p)
		}
	}
	return s
}

// Expand returns the term followed by its aliases, e.g. "ion" -> ["ion", "ION Orchard"].
func (s *AliasSearch) Expand(term string) []string {
	expanded := []string{term}
	if aliases, ok := s.aliases[strings.ToLower(strings.TrimSpace(term))]; ok {
		expanded = append(expanded, aliases...)
	}
	return expanded
}

type scored struct {
	carpark  *entities.Carpark
	priority int
	score    int
}

// Search returns the carparks matching term, best first. Equal matches keep
// their input order. An empty term returns the input unchanged.
func (s *AliasSearch) Search(ctx context.Context, term string, carparks []*entities.Carpark) ([]*entities.Carpark, error) {
	if strings.TrimSpace(term) == "" {
		return carparks, nil
	}

	terms := s.Expand(term)
	matches := make([]scored, 0)
	for _, cp := range carparks {
		if cp == nil {
			continue
		}
		priority, score := s.Score(cp, terms)
		if score > 0 {
			matches = append(matches, scored{carpark: cp, priority: priority, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].priority != matches[j].priority {
			return matches[i].priority < matches[j].priority
		}
		return matches[i].score > matches[j].score
	})

	out := make([]*entities.Carpark, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.carpark)
	}
	return out, nil
}

// Score rates one carpark against the expanded terms. Lower priority is
// better, higher score breaks ties; (999, 0) means no match.
//
//	0 alias equals the development name
//	1 term equals a popular development name
//	2 popular development starts with an alias
//	3 popular development contains an alias, or a whole word of it matches
//	4 term equals the development name
//	5 development starts with the term
//	6 whole-word or long substring match in the development name
//	7 short substring match in the development name, or match in the area
//	8 match in the carpark id
func (s *AliasSearch) Score(cp *entities.Carpark, terms []string) (int, int) {
	id := strings.ToLower(cp.ID)
	area := strings.ToLower(cp.Area)
	development := strings.ToLower(cp.Name)

	popular := s.IsPopular(cp.Name)

	aliasSet := make(map[string]bool, len(terms))
	for _, t := range terms[1:] {
		aliasSet[t] = true
	}

	bestPriority, bestScore := noMatch, 0
	for _, term := range terms {
		t := strings.ToLower(term)
		if t == "" {
			continue
		}
		isAlias := aliasSet[term]

		var priority, score int
		switch {
		case isAlias && t == development:
			priority, score = 0, 10000
		case t == development && popular:
			priority, score = 1, 5000
		case isAlias && strings.HasPrefix(development, t) && popular:
			priority, score = 2, 4000
		case isAlias && strings.Contains(development, t) && popular:
			priority, score = 3, 3000
		case t == development:
			priority, score = 4, 2000
		case strings.HasPrefix(development, t):
			priority, score = 5, 1500
		case strings.Contains(" "+development+" ", " "+t+" "):
			priority, score = 6, 1200
			if popular {
				priority = 3
			}
		case strings.Contains(development, t):
			// short terms like "ion" would otherwise match inside "zion"
			if len(t) <= 3 {
				priority, score = 7, 300
			} else {
				priority, score = 6, 1000
			}
		case strings.Contains(area, t):
			priority, score = 7, 500
		case strings.Contains(id, t):
			priority, score = 8, 300
		default:
			continue
		}

		if priority < bestPriority || (priority == bestPriority && score > bestScore) {
			bestPriority, bestScore = priority, score
		}
	}

	if bestPriority == noMatch {
		return noMatch, 0
	}
	if popular {
		bestScore += 100
	}
	return bestPriority, bestScore
}

// AliasesFor returns the alias keys that expand to a development name.
func (s *AliasSearch) AliasesFor(name string) []string {
	development := strings.ToLower(name)
	var keys []string
	for key, targets := range s.aliases {
		for _, target := range targets {
			if t := strings.ToLower(target); t != "" && strings.Contains(development, t) {
				keys = append(keys, key)
				break
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// IsPopular reports whether a development name is a popular destination.
func (s *AliasSearch) IsPopular(name string) bool {
	development := strings.ToLower(name)
	for _, loc := range s.popular {
		if strings.Contains(development, loc) {
			return true
		}
	}
	return false
}
