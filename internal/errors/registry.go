package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Runtime Errors (C001-C099)
	// ============================================

	"C001": {
		Category: CategoryRuntime,
		Message:  "Handler parameter could not be resolved",
		Detail:   "No resolver in the chain produced a value for a handler parameter. Register the dependency, bind a data context, or name the element explicitly.",
		DocURL:   "https://ctrlbind.dev/docs/errors/C001",
	},
	"C002": {
		Category: CategoryRuntime,
		Message:  "Event not found on element",
		Detail:   "A handler names an event the target element does not expose. The handler is skipped; other handlers are still registered.",
		DocURL:   "https://ctrlbind.dev/docs/errors/C002",
	},
	"C003": {
		Category: CategoryRuntime,
		Message:  "Element not found",
		Detail:   "A handler or element slot names an element that is not in the attached element's subtree.",
		DocURL:   "https://ctrlbind.dev/docs/errors/C003",
	},
	"C004": {
		Category: CategoryRuntime,
		Message:  "Controller creation failed",
		Detail:   "The controller factory returned an error for a candidate controller type.",
		DocURL:   "https://ctrlbind.dev/docs/errors/C004",
	},
	"C005": {
		Category: CategoryRuntime,
		Message:  "Handler panicked",
		Detail:   "A bound handler panicked. The panic was recovered and reported as an error; no unhandled-error subscriber marked it handled.",
		DocURL:   "https://ctrlbind.dev/docs/errors/C005",
	},

	// ============================================
	// Config Errors (C100-C199)
	// ============================================

	"C100": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "Neither ctrlbind.json nor ctrlbind.yaml exists in the directory.",
		DocURL:   "https://ctrlbind.dev/docs/errors/C100",
	},
	"C101": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "The configuration file could not be read or parsed.",
		DocURL:   "https://ctrlbind.dev/docs/errors/C101",
	},
	"C102": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
		Detail:   "A configuration value is out of range or malformed.",
		DocURL:   "https://ctrlbind.dev/docs/errors/C102",
	},

	// ============================================
	// CLI Errors (C200-C299)
	// ============================================

	"C200": {
		Category: CategoryCLI,
		Message:  "Unknown controller",
		Detail:   "The named controller is not registered.",
		DocURL:   "https://ctrlbind.dev/docs/errors/C200",
	},
	"C201": {
		Category: CategoryCLI,
		Message:  "Server failed",
		Detail:   "The remote view host stopped with an error.",
		DocURL:   "https://ctrlbind.dev/docs/errors/C201",
	},
}

// Lookup returns the template for a code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
