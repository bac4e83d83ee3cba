package model

// DefaultServiceDuration applies to services missing from the catalog.
const DefaultServiceDuration = 60

// ServiceCategory groups services in menus.
type ServiceCategory string

const (
	CategoryDentistry ServiceCategory = "dentistry"
	CategoryNutrition ServiceCategory = "nutrition"
)

// Service is a bookable kind of appointment.
type Service struct {
	Name            string
	DurationMinutes int
	Category        ServiceCategory
	Restricted      bool
}

// Catalog is an ordered list of services.
type Catalog []Service

// DefaultCatalog returns the services offered by the clinic.
func DefaultCatalog() Catalog {
	return Catalog{
		{Name: "Консультация", DurationMinutes: 30, Category: CategoryDentistry},
		{Name: "Лечение кариеса", DurationMinutes: 60, Category: CategoryDentistry},
		{Name: "Лечение пульпита", DurationMinutes: 90, Category: CategoryDentistry},
		{Name: "Профессиональная чистка зубов", DurationMinutes: 60, Category: CategoryDentistry},
		{Name: "Отбеливание зубов", DurationMinutes: 90, Category: CategoryDentistry},
		{Name: "Протезирование", DurationMinutes: 120, Category: CategoryDentistry},
		{Name: "Имплантация", DurationMinutes: 120, Category: CategoryDentistry},
		{Name: "Выявление дефицитов в организме по зубам", DurationMinutes: 60, Category: CategoryNutrition},
		{Name: "Выявление дефицитов при помощи БРТ", DurationMinutes: 30, Category: CategoryNutrition},
		{Name: "Подбор витаминов и минералов", DurationMinutes: 60, Category: CategoryNutrition},
		{Name: "БРТ", DurationMinutes: 30, Category: CategoryNutrition, Restricted: true},
		{Name: "Другое", DurationMinutes: 60, Category: CategoryDentistry},
	}
}

// Lookup finds a service by name.
func (c Catalog) Lookup(name string) (Service, bool) {
	for _, s := range c {
		if s.Name == name {
			return s, true
		}
	}
	return Service{}, false
}

// Duration returns the service duration in minutes, falling back to the default.
func (c Catalog) Duration(name string) int {
	if s, ok := c.Lookup(name); ok && s.DurationMinutes > 0 {
		return s.DurationMinutes
	}
	return DefaultServiceDuration
}

// IsRestricted reports whether the named service uses the fixed-day schedule.
func (c Catalog) IsRestricted(name string) bool {
	s, ok := c.Lookup(name)
	return ok && s.Restricted
}

// ByCategory returns the services of one category, excluding restricted ones.
func (c Catalog) ByCategory(cat ServiceCategory) []Service {
	var out []Service
	for _, s := range c {
		if s.Category == cat && !s.Restricted {
			out = append(out, s)
		}
	}
	return out
}

// Index returns the position of the named service, or -1.
func (c Catalog) Index(name string) int {
	for i, s := range c {
		if s.Name == name {
			return i
		}
	}
	return -1
}
