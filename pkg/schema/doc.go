// Package schema declares the types of action parameters and coerces slot
// values to them before they are bound.
//
// Slots usually arrive as text extracted from the conversation, so coercion
// is lenient: "3" is a valid int and "yes" is not a valid bool.
//
//	s, err := schema.ParseTypeMap(map[string]string{"guests": "int", "date": "string"})
//	args, err := schema.Coerce(s, map[string]any{"guests": "3", "date": "friday"})
//	// args["guests"] == int64(3)
package schema
