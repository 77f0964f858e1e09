package staff

import "time"

type PayType string

const (
	PayTypeSalaried PayType = "salaried"
	PayTypeHourly   PayType = "hourly"
)

type EmploymentStatus string

const (
	EmploymentStatusActive   EmploymentStatus = "active"
	EmploymentStatusExiting  EmploymentStatus = "exiting"
	EmploymentStatusInactive EmploymentStatus = "inactive"
)

// Profile - compensation profile read by payroll and settlement
type Profile struct {
	ID                 string
	CompanyID          string
	EmployeeCode       string
	FullName           string
	PayType            PayType
	MonthlySalary      int64 // salaried staff, minor units
	HourlyRate         int64 // hourly staff, minor units
	HireDate           time.Time
	RequiredNoticeDays int
	EmploymentStatus   EmploymentStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (p Profile) IsSalaried() bool {
	return p.PayType == PayTypeSalaried
}
