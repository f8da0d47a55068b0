package dataset

import (
	"strings"
)

// FieldType is the declared type of a dataset field
type FieldType int

const (
	TypeUnknown FieldType = iota
	TypeGeometry
	TypeString
	TypeDouble
	TypeInt
	TypeLong
	TypeBool
	TypeDate
	TypeObject
	TypeArray
)

// ParseFieldType maps a declared type name onto FieldType, case-insensitively
func ParseFieldType(s string) FieldType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "geometry":
		return TypeGeometry
	case "string":
		return TypeString
	case "double", "number", "decimal":
		return TypeDouble
	case "int", "integer":
		return TypeInt
	case "long":
		return TypeLong
	case "bool", "boolean":
		return TypeBool
	case "date", "datetime", "timestamp":
		return TypeDate
	case "object":
		return TypeObject
	case "array":
		return TypeArray
	default:
		return TypeUnknown
	}
}

func (t FieldType) String() string {
	switch t {
	case TypeGeometry:
		return "geometry"
	case TypeString:
		return "string"
	case TypeDouble:
		return "double"
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	case TypeBool:
		return "bool"
	case TypeDate:
		return "date"
	case TypeObject:
		return "object"
	case TypeArray:
		return "array"
	case TypeUnknown:
		return "unknown"
	}
	return "unknown"
}

// Role is the semantic tag of a field in the address hierarchy or as a join key
type Role int

const (
	RoleNone Role = iota
	RoleRegion
	RoleMunicipality
	RoleStreet
	RoleHouseNumber
	RoleJoinKey
)

// AddressRoles lists the four roles of a complete address, top-down
var AddressRoles = []Role{RoleRegion, RoleMunicipality, RoleStreet, RoleHouseNumber}

// ParseRole maps a declared feature name onto Role
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "region":
		return RoleRegion
	case "municipality", "municipalitet":
		return RoleMunicipality
	case "street":
		return RoleStreet
	case "housenumber", "house_number", "house":
		return RoleHouseNumber
	case "joinkey", "join_key":
		return RoleJoinKey
	default:
		return RoleNone
	}
}

func (r Role) String() string {
	switch r {
	case RoleRegion:
		return "Region"
	case RoleMunicipality:
		return "Municipality"
	case RoleStreet:
		return "Street"
	case RoleHouseNumber:
		return "HouseNumber"
	case RoleJoinKey:
		return "JoinKey"
	case RoleNone:
		return ""
	}
	return ""
}

// FieldDefinition describes one declared field of a dataset
type FieldDefinition struct {
	Name string
	Type FieldType
	Role Role
}

// IsBlank reports whether the field name is empty or whitespace only
func (f FieldDefinition) IsBlank() bool {
	return strings.TrimSpace(f.Name) == ""
}

// FirstWithRole returns the first field carrying the role
func FirstWithRole(fields []FieldDefinition, role Role) (FieldDefinition, bool) {
	for _, f := range fields {
		if f.Role == role {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// Declared reports whether a field with the given name is declared
func Declared(fields []FieldDefinition, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// RegistryEntry is a canonical administrative unit used as a resolution target
type RegistryEntry struct {
	Name     string          `yaml:"name" json:"name"`
	ID       string          `yaml:"id" json:"id"`
	Children []RegistryEntry `yaml:"municipalities,omitempty" json:"municipalities,omitempty"`
}

// Identifier returns the stable identifier, falling back to the name
func (e RegistryEntry) Identifier() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Name
}

// Record is the catalog entry of a dataset
type Record struct {
	Dataset       string
	PublicationID string
}

// Published reports whether the dataset carries an external publication identifier
func (r Record) Published() bool {
	return r.PublicationID != ""
}
