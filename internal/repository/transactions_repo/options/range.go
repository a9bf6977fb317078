package options

// Range is a filter with optional lower and upper bounds, both inclusive.
type Range interface {
	From() (interface{}, bool)
	To() (interface{}, bool)
}
