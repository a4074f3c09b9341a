package model

import "time"

// MaxDurationMinutes caps a service at one day.
const MaxDurationMinutes = 24 * 60

type Service struct {
	ID              string
	Name            string
	DurationMinutes int
	Price           float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// ServicePatch carries an administrative edit; nil fields are left unchanged.
type ServicePatch struct {
	Name            *string
	DurationMinutes *int
	Price           *float64
}

func (p ServicePatch) Apply(s Service) Service {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.DurationMinutes != nil {
		s.DurationMinutes = *p.DurationMinutes
	}
	if p.Price != nil {
		s.Price = *p.Price
	}
	return s
}
