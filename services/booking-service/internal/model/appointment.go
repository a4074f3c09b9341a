package model

import "time"

type Appointment struct {
	ID         string
	CustomerID string
	ServiceID  string
	StartTime  time.Time
	EndTime    time.Time
	CreatedAt  time.Time
}

// AppointmentDetail is an appointment with its customer and service expanded for listings.
type AppointmentDetail struct {
	Appointment
	CustomerName  string
	CustomerPhone string
	ServiceName   string
	ServicePrice  float64
}

// AppointmentFilter narrows the administrative listing. Zero values mean "no filter".
type AppointmentFilter struct {
	ServiceID string
	From      time.Time
	To        time.Time
}
