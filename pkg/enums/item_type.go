package enums

import "fmt"

// ItemType classifies catalog items. Maps to item_type in Postgres.
type ItemType string

const (
	ItemTypeFinishedGood ItemType = "finished_good"
	ItemTypeComponent    ItemType = "component"
	ItemTypeRawMaterial  ItemType = "raw_material"
	ItemTypeSupply       ItemType = "supply"
	ItemTypeService      ItemType = "service"
)

var validItemTypes = []ItemType{
	ItemTypeFinishedGood,
	ItemTypeComponent,
	ItemTypeRawMaterial,
	ItemTypeSupply,
	ItemTypeService,
}

// String implements fmt.Stringer.
func (i ItemType) String() string {
	return string(i)
}

// IsValid reports whether the value is a known ItemType.
func (i ItemType) IsValid() bool {
	for _, candidate := range validItemTypes {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseItemType converts raw input into a ItemType.
func ParseItemType(value string) (ItemType, error) {
	for _, candidate := range validItemTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item type %q", value)
}
