package resolve

import (
	"math"
	"strings"

	"github.com/bdobrica/Cinematic/internal/cinematic/media"
)

// scoreCandidate rates how well a candidate matches the requested entity.
// Title similarity dominates; an explicit year match and library presence
// contribute smaller bonuses. Scores are clamped to [0, 1].
func scoreCandidate(candidate media.CandidateRecord, entity string, year int) float64 {
	similarity := titleSimilarity(candidate.Title, entity)

	// An exact title is a full match on its own; the year hint is only
	// allowed to veto, not required to confirm. A contradicting year falls
	// through to the weighted path so same-title remakes stay separable.
	if similarity == 1.0 && (year == 0 || candidate.Year == year) {
		return 1.0
	}

	score := 0.0

	weights := map[string]float64{
		"title_similarity": 0.7,
		"year_match":       0.2,
		"in_catalog":       0.1,
	}

	score += weights["title_similarity"] * similarity

	if year > 0 && candidate.Year == year {
		score += weights["year_match"]
	}

	if candidate.Source == media.SourceCatalog {
		score += weights["in_catalog"]
	}

	return math.Min(score, 1.0)
}

// titleSimilarity compares a candidate title against the requested text.
// Exact normalised equality is a full match; otherwise the overlap of the
// request's words with the title drives the score.
func titleSimilarity(title, entity string) float64 {
	titleNorm := normalizeTitle(title)
	entityNorm := normalizeTitle(entity)

	if titleNorm == entityNorm {
		return 1.0
	}
	if titleNorm == "" || entityNorm == "" {
		return 0.0
	}

	titleWords := strings.Fields(titleNorm)
	entityWords := strings.Fields(entityNorm)

	titleSet := make(map[string]bool, len(titleWords))
	for _, word := range titleWords {
		titleSet[word] = true
	}

	matched := 0
	for _, word := range entityWords {
		if titleSet[word] {
			matched++
		}
	}
	if matched == 0 {
		return 0.0
	}

	// Overlap relative to both sides, so "the matrix" scores the 1999 film
	// above "The Matrix Resurrections" while still matching both.
	coverage := float64(matched) / float64(len(entityWords))
	precision := float64(matched) / float64(len(titleWords))
	return math.Min(0.9*coverage*0.5+0.9*precision*0.5+0.1*boundaryBonus(titleNorm, entityNorm), 1.0)
}

// boundaryBonus rewards the request appearing as a whole phrase in the title.
func boundaryBonus(titleNorm, entityNorm string) float64 {
	if strings.Contains(" "+titleNorm+" ", " "+entityNorm+" ") {
		return 1.0
	}
	return 0.0
}

var titleNoise = strings.NewReplacer(
	":", " ", "-", " ", ",", " ", ".", " ", "!", " ", "?", " ", "'", "", "’", "",
	"(", " ", ")", " ",
)

func normalizeTitle(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = titleNoise.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
