package services

import (
	"sort"
	"strconv"

	"clubscan/models"
	"clubscan/utils"
)

// ResortCount pairs a resort with its number of available units.
type ResortCount struct {
	Resort string
	Count  int
}

// Summary aggregates one run's accepted records for the end-of-run report.
type Summary struct {
	TotalRecords     int
	Rejected         int
	MinPoints        int
	MaxPoints        int
	RecordsPerResort []ResortCount
}

// BuildSummary computes the report over a finished run.
func BuildSummary(result *models.RunResult) Summary {
	s := Summary{
		TotalRecords: len(result.Records),
		Rejected:     result.Rejected,
	}

	counts := make(map[string]int)
	for _, rec := range result.Records {
		counts[rec.Resort]++

		pts, err := strconv.Atoi(rec.AvailabilityOrPrice)
		if err != nil {
			continue
		}
		if s.MinPoints == 0 || pts < s.MinPoints {
			s.MinPoints = pts
		}
		if pts > s.MaxPoints {
			s.MaxPoints = pts
		}
	}

	perResort := make([]ResortCount, 0, len(counts))
	for resort, count := range counts {
		perResort = append(perResort, ResortCount{Resort: resort, Count: count})
	}
	sort.Slice(perResort, func(i, j int) bool {
		if perResort[i].Count == perResort[j].Count {
			return perResort[i].Resort < perResort[j].Resort
		}
		return perResort[i].Count > perResort[j].Count
	})
	s.RecordsPerResort = perResort

	return s
}

// Print logs the summary in a human-scannable form.
func (s Summary) Print(logger *utils.Logger) {
	logger.Info("[summary] %d records accepted, %d rejected", s.TotalRecords, s.Rejected)
	if s.MinPoints > 0 {
		logger.Info("[summary] Points range: %d to %d", s.MinPoints, s.MaxPoints)
	}
	for _, rc := range s.RecordsPerResort {
		logger.Info("[summary]   %-40s %d units", rc.Resort, rc.Count)
	}
}
