// Package schema loads model definitions from YAML and applies them to a
// datamapper.Mapper.
//
// # Format
//
//	models:
//	  - name: Book
//	    properties:
//	      - id serial
//	      - title string
//	      - name: blurb
//	        type: text
//	        lazy_contexts: [details]
//	      - class_type discriminator
//	    relationships:
//	      - name: author
//	        cardinality: many_to_one
//	      - name: editors
//	        cardinality: many_to_many
//	  - name: Fiction
//	    parent: Book
//	    properties:
//	      - series string
//	  - name: Author
//	    storage:
//	      legacy: writers
//	    properties:
//	      - id serial
//	      - name string
//
// Properties may be written as "name type" scalars or as mappings. Models
// may reference parents and related models defined anywhere in the schema.
package schema
