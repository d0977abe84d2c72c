package store

import (
	"sort"

	"github.com/kilianp07/rescue/core/model"
)

// SortByCapacity orders teams by capacity descending, ties by lowest id.
func SortByCapacity(teams []model.RescueTeam) {
	sort.SliceStable(teams, func(i, j int) bool {
		if teams[i].Capacity != teams[j].Capacity {
			return teams[i].Capacity > teams[j].Capacity
		}
		return teams[i].ID < teams[j].ID
	})
}

// SortByCreation orders requests by creation time, ties by id.
func SortByCreation(reqs []model.EmergencyRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		if !reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
		}
		return reqs[i].ID < reqs[j].ID
	})
}
