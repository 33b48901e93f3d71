package model

// Category selects the attention flow applied when an appointment is
// marked attended.
type Category string

const (
	CategoryGeneral   Category = "general"
	CategorySurgical  Category = "surgical"
	CategoryEmergency Category = "emergency"
)

type ResourceRequirement struct {
	SupplyID string
	Quantity int
}

// Service is a catalog entry: what is being booked and what it consumes.
type Service struct {
	ID              string
	Name            string
	Category        Category
	BasePriceCents  int64
	DurationMinutes int
	Resources       []ResourceRequirement
}

// PriceCents applies the emergency surcharge (a percentage) to the base price.
func (s Service) PriceCents(emergency bool, surchargePercent int) int64 {
	if !emergency {
		return s.BasePriceCents
	}
	return s.BasePriceCents * int64(100+surchargePercent) / 100
}
