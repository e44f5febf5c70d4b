package service

import "reflow_oven/internal/reflow"

type ProfileService struct {
	table reflow.ProfileTable
}

func NewProfileService(table reflow.ProfileTable) *ProfileService {
	return &ProfileService{table: table}
}

// Table returns the profiles runs are started with.
func (s *ProfileService) Table() reflow.ProfileTable { return s.table }
