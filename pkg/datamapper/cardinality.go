package datamapper

//go:generate go run github.com/dmarkham/enumer -type Cardinality -trimprefix Cardinality -transform snake -yaml -output cardinality.gen.go

// Cardinality is the shape of a relationship.
type Cardinality int

const (
	CardinalityManyToOne Cardinality = iota
	CardinalityOneToMany
	CardinalityManyToMany
)
