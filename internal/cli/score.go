package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/partimer-be/internal/geo"
	"github.com/cuongbtq/partimer-be/internal/matching"
	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

type scoreFlags struct {
	distance     float64
	radius       float64
	reliability  float64
	experience   int
	workerSkills string
	jobSkills    string
	from         []float64
	to           []float64
}

type scoreReport struct {
	DistanceKm float64 `json:"distance_km"`
	SkillScore float64 `json:"skill_score"`
	MatchScore float64 `json:"match_score"`
}

// newScoreCommand scores a hypothetical worker against a job without a database
func newScoreCommand() *cobra.Command {
	f := &scoreFlags{}

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute the match score of a worker profile for a job offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := f.compute()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().Float64Var(&f.distance, "distance", 0, "distance between worker and job in km")
	cmd.Flags().Float64Var(&f.radius, "radius", 10, "job max radius in km")
	cmd.Flags().Float64Var(&f.reliability, "reliability", 5, "worker reliability score (0-10)")
	cmd.Flags().IntVar(&f.experience, "experience", 0, "worker experience in years")
	cmd.Flags().StringVar(&f.workerSkills, "worker-skills", "", "comma-separated worker skills")
	cmd.Flags().StringVar(&f.jobSkills, "job-skills", "", "comma-separated required skills")
	cmd.Flags().Float64SliceVar(&f.from, "from", nil, "worker lat,lng; overrides --distance together with --to")
	cmd.Flags().Float64SliceVar(&f.to, "to", nil, "job lat,lng")
	return cmd
}

func (f *scoreFlags) compute() (*scoreReport, error) {
	if f.reliability < 0 || f.reliability > 10 {
		return nil, fmt.Errorf("--reliability must be between 0 and 10")
	}
	if f.experience < 0 {
		return nil, fmt.Errorf("--experience must not be negative")
	}

	distance := f.distance
	switch {
	case len(f.from) == 0 && len(f.to) == 0:
	case len(f.from) == 2 && len(f.to) == 2:
		distance = geo.Distance(f.from[0], f.from[1], f.to[0], f.to[1])
	default:
		return nil, fmt.Errorf("--from and --to both need lat,lng")
	}
	if distance < 0 {
		return nil, fmt.Errorf("--distance must not be negative")
	}

	worker := &domain.Worker{
		ReliabilityScore: f.reliability,
		ExperienceYears:  f.experience,
		Skills:           f.workerSkills,
	}
	job := &domain.Job{
		MaxRadiusKm:    f.radius,
		RequiredSkills: f.jobSkills,
	}

	skill := matching.SkillMatch(worker.Skills, job.RequiredSkills)
	return &scoreReport{
		DistanceKm: geo.Round(distance, 2),
		SkillScore: skill,
		MatchScore: matching.MatchScore(worker, job, distance, skill),
	}, nil
}
