package config

type AppointmentStatus string

const (
	Upcoming  AppointmentStatus = "upcoming"
	Completed AppointmentStatus = "completed"
	Cancelled AppointmentStatus = "cancelled"
)

const (
	DoctorTitlePrefix = "Dr. "
	UnknownPatientID  = "unknown"
)
