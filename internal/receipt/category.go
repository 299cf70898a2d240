package receipt

import "strings"

// Category is the closed set of spending categories
type Category string

const (
	CategoryHousing        Category = "housing"
	CategoryUtilities      Category = "utilities"
	CategoryGroceries      Category = "groceries"
	CategoryDining         Category = "dining"
	CategoryHealth         Category = "health"
	CategoryTransportation Category = "transportation"
	CategoryEntertainment  Category = "entertainment"
	CategoryEducation      Category = "education"
	CategoryInsurance      Category = "insurance"
	CategoryDebt           Category = "debt"
	CategorySavings        Category = "savings"
	CategoryTravel         Category = "travel"
	CategoryOther          Category = "other"
)

var categories = []Category{
	CategoryHousing,
	CategoryUtilities,
	CategoryGroceries,
	CategoryDining,
	CategoryHealth,
	CategoryTransportation,
	CategoryEntertainment,
	CategoryEducation,
	CategoryInsurance,
	CategoryDebt,
	CategorySavings,
	CategoryTravel,
	CategoryOther,
}

var categoryTitles = map[Category]string{
	CategoryHousing:        "Arriendo / Hipoteca",
	CategoryUtilities:      "Servicios básicos",
	CategoryGroceries:      "Supermercado",
	CategoryDining:         "Comida preparada",
	CategoryHealth:         "Salud",
	CategoryTransportation: "Transporte",
	CategoryEntertainment:  "Ocio",
	CategoryEducation:      "Educación",
	CategoryInsurance:      "Seguros",
	CategoryDebt:           "Deudas",
	CategorySavings:        "Ahorro",
	CategoryTravel:         "Viajes",
	CategoryOther:          "Otros",
}

// Categories returns every category in display order
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// Title returns the human readable name of the category
func (c Category) Title() string {
	if t, ok := categoryTitles[c]; ok {
		return t
	}
	return categoryTitles[CategoryOther]
}

// Valid reports whether c belongs to the enumeration
func (c Category) Valid() bool {
	_, ok := categoryTitles[c]
	return ok
}

// ParseCategory maps an identifier to a Category, falling back to CategoryOther
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c.Valid() {
		return c
	}
	return CategoryOther
}
