package runtime

import "maps"

// variables is the store shared by every level of a simulation tree. The root
// owns it and hands the same pointer to each sub-simulator it creates.
type variables struct {
	values map[string]any
}

func newVariables() *variables {
	return &variables{values: make(map[string]any)}
}

func (v *variables) get(name string) (any, bool) {
	val, ok := v.values[name]
	return val, ok
}

func (v *variables) set(name string, value any) {
	v.values[name] = value
}

func (v *variables) delete(name string) {
	delete(v.values, name)
}

func (v *variables) clear() {
	clear(v.values)
}

func (v *variables) snapshot() map[string]any {
	return maps.Clone(v.values)
}
