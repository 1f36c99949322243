// Package errors provides structured, actionable error messages for the
// memval CLI.
//
// Each error has a unique code (e.g., "M120") that maps to a category, a
// short message and a detailed explanation. Callers add a hint, a usage
// example and the underlying error:
//
//	err := errors.New("M122").
//	    WithDetail("unknown backend \"redis\"").
//	    WithSuggestion("Use one of: memory, bolt, sqlite, s3")
//
//	fmt.Print(err.Format())
//	// Output:
//	// ERROR M122: Invalid configuration value
//	//
//	//   unknown backend "redis"
//	//
//	//   Hint: Use one of: memory, bolt, sqlite, s3
//
// # Error Categories
//
//   - config: configuration loading and validation
//   - storage: opening or using a storage backend
//   - value: decoding or updating a stored value
//   - cli: command usage
package errors
