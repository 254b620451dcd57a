package meta

// Common IFC element and spatial-structure types seen in metadata trees.
// Loaders use these for include/exclude filtering defaults.
const (
	TypeProject        = "IfcProject"
	TypeSite           = "IfcSite"
	TypeBuilding       = "IfcBuilding"
	TypeBuildingStorey = "IfcBuildingStorey"
	TypeSpace          = "IfcSpace"

	TypeWall             = "IfcWall"
	TypeWallStandardCase = "IfcWallStandardCase"
	TypeSlab             = "IfcSlab"
	TypeRoof             = "IfcRoof"
	TypeWindow           = "IfcWindow"
	TypeDoor             = "IfcDoor"
	TypeColumn           = "IfcColumn"
	TypeBeam             = "IfcBeam"
	TypeStair            = "IfcStair"
	TypeRailing          = "IfcRailing"
	TypeFurniture        = "IfcFurnishingElement"
	TypeOpening          = "IfcOpeningElement"

	// TypeDefault is assigned to objects with no declared type.
	TypeDefault = "DEFAULT"
)

// SpatialTypes are the containership types that structure the tree rather
// than representing physical elements.
var SpatialTypes = map[string]bool{
	TypeProject:        true,
	TypeSite:           true,
	TypeBuilding:       true,
	TypeBuildingStorey: true,
	TypeSpace:          true,
}
