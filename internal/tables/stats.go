package tables

import (
	"context"
	"fmt"

	"github.com/region23/tablebook/internal/storage/models"
	apperrors "github.com/region23/tablebook/pkg/errors"
)

// Stats содержит сводку по столам ресторана
type Stats struct {
	TotalTables      int            `json:"total_tables"`
	IndividualTables int            `json:"individual_tables"`
	JoinedTables     int            `json:"joined_tables"`
	JoinedGroups     int            `json:"joined_groups"`
	TotalCapacity    int            `json:"total_capacity"`
	AverageCapacity  float64        `json:"average_capacity"`
	ByStatus         map[string]int `json:"by_status"`
	ByLocation       map[string]int `json:"by_location"`
}

// Statistics считает статистику по столам ресторана
func (e *Engine) Statistics(ctx context.Context, restaurantID string) (*Stats, error) {
	all, err := e.repo.ListTables(ctx, models.TableFilter{RestaurantID: restaurantID})
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("failed to list tables: %w", err))
	}
	return computeStats(all), nil
}

func computeStats(all []*models.Table) *Stats {
	stats := &Stats{
		TotalTables: len(all),
		ByStatus:    make(map[string]int),
		ByLocation:  make(map[string]int),
	}

	groups := make(map[string]struct{})
	for _, t := range all {
		stats.TotalCapacity += t.Capacity
		stats.ByStatus[string(t.Status)]++

		location := t.LocationValue()
		if location == "" {
			location = "unassigned"
		}
		stats.ByLocation[location]++

		if t.IsJoined {
			stats.JoinedTables++
			groups[t.GroupID()] = struct{}{}
		} else {
			stats.IndividualTables++
		}
	}

	stats.JoinedGroups = len(groups)
	if stats.TotalTables > 0 {
		stats.AverageCapacity = float64(stats.TotalCapacity) / float64(stats.TotalTables)
	}
	return stats
}
