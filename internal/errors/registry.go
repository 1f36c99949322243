package errors

import "sort"

// Template defines a registered error type.
type Template struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// Configuration Errors (M120-M139)
	// ============================================

	"M120": {
		Category: CategoryConfig,
		Message:  "Failed to read configuration",
		Detail:   "The configuration file exists but could not be read or parsed.",
	},
	"M121": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "The configuration file given with --config does not exist.",
	},
	"M122": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is outside its allowed range or set.",
	},
	"M123": {
		Category: CategoryConfig,
		Message:  "Missing secret",
		Detail:   "Secure storage was requested but the sealing secret is not set or is too short.",
	},

	// ============================================
	// Storage Errors (M200-M219)
	// ============================================

	"M200": {
		Category: CategoryStorage,
		Message:  "Failed to open storage backend",
		Detail:   "The configured backend could not be opened.",
	},
	"M201": {
		Category: CategoryStorage,
		Message:  "Storage operation failed",
		Detail:   "A read, write or delete against the backend returned an error.",
	},

	// ============================================
	// Value Errors (M300-M319)
	// ============================================

	"M300": {
		Category: CategoryValue,
		Message:  "Invalid JSON value",
		Detail:   "Values are given as JSON: strings need quotes, mappings use braces.",
	},
	"M301": {
		Category: CategoryValue,
		Message:  "Invalid update expression",
		Detail:   "The update expression could not be compiled or evaluated against the current value.",
	},

	// ============================================
	// CLI Errors (M140-M159)
	// ============================================

	"M140": {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
		Detail:   "The command was called with the wrong number or kind of arguments.",
	},
	"M141": {
		Category: CategoryCLI,
		Message:  "Server failed",
		Detail:   "The live server stopped with an error.",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}

// Codes returns all registered codes in sorted order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
