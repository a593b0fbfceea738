package matching

import "strings"

// neutralSkillScore is returned when either side has no skills listed.
const neutralSkillScore = 0.5

// SkillMatch returns the fraction of the job's required skills that the
// worker lists. Tags are compared case-insensitively after trimming.
func SkillMatch(workerSkills, jobSkills string) float64 {
	worker := parseTags(workerSkills)
	required := parseTags(jobSkills)
	if len(worker) == 0 || len(required) == 0 {
		return neutralSkillScore
	}

	matched := 0
	for tag := range required {
		if _, ok := worker[tag]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(required))
}

func parseTags(s string) map[string]struct{} {
	tags := make(map[string]struct{})
	for _, t := range strings.Split(s, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			tags[t] = struct{}{}
		}
	}
	return tags
}
