package matching

import (
	"math"

	"github.com/cuongbtq/partimer-be/internal/geo"
	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

// Score weights. They sum to 1.0.
const (
	WeightDistance    = 0.4
	WeightReliability = 0.3
	WeightExperience  = 0.1
	WeightSkill       = 0.2
)

const (
	maxReliability        = 10.0
	experienceCapYears    = 5.0
	scoreDecimalPlaces    = 3
	distanceDecimalPlaces = 2
)

// MatchScore combines distance, reliability, experience and skill fit into a
// ranking score in [0, 1], rounded to three decimals.
func MatchScore(worker *domain.Worker, job *domain.Job, distanceKm, skillScore float64) float64 {
	distanceScore := 0.0
	if job.MaxRadiusKm > 0 {
		distanceScore = math.Max(0, 1-distanceKm/job.MaxRadiusKm)
	}

	reliabilityScore := clamp01(worker.ReliabilityScore / maxReliability)
	experienceScore := clamp01(float64(worker.ExperienceYears) / experienceCapYears)

	score := WeightDistance*distanceScore +
		WeightReliability*reliabilityScore +
		WeightExperience*experienceScore +
		WeightSkill*clamp01(skillScore)

	return geo.Round(score, scoreDecimalPlaces)
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
