// Package datamapper maps rows of a storage adapter to resources with a
// per-repository identity map.
//
// A Mapper holds Model definitions and the adapters of named repositories.
// A Repository is a unit of work over one adapter: it owns one identity map
// per model, so loading the same key twice through the same repository
// returns the same *Resource. The current repository travels in a
// context.Context.
//
// # Usage
//
//	m := datamapper.New(datamapper.WithLogger(logger))
//	m.Setup(datamapper.DefaultRepositoryName, memory.New())
//
//	book := m.Define("Book", func(b *datamapper.Model) {
//	    b.Property("id", property.Serial)
//	    b.Property("title", property.String)
//	    b.Property("class_type", property.Discriminator)
//	})
//	book.Inherit("Fiction", nil)
//
//	err := m.Within(ctx, "default", func(ctx context.Context) error {
//	    b, err := book.Get(ctx, 1)
//	    ...
//	})
//
// # Inheritance
//
// Models sharing a storage are told apart by a Discriminator property. Rows
// are loaded as the model the discriminator names, which must be the queried
// model or one of its descendants.
//
// # Relationships
//
// BelongsTo defines a many-to-one relationship whose accessor returns a
// *ManyToOneProxy. HasMany defines a one-to-many relationship, or a
// many-to-many relationship through a generated join model when
// RelationshipOptions.Through is ThroughResource. Associations are saved
// with their resource: many-to-one parents first, collections last.
package datamapper
