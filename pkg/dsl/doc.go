/*
Package dsl provides a Go DSL for programmatically constructing machines.

It allows developers to define hierarchical state machines using a fluent
builder instead of .bsm, JSON or YAML files. This is particularly useful for
generated machines, unit tests and IDE autocompletion.

Example usage:

	b := dsl.New("job")

	b.State("Idle").Initial().
		Entry("attempts = attempts + 1").
		On("start", "Processing")

	b.State("Processing").
		Sub(func(sub *dsl.Builder) {
			sub.State("Working").Initial().On("finish", "Finished")
			sub.State("Finished").Final()
		}).
		Go("Done").When("Processing_sub_completed")

	b.State("Done").Final()

	m, err := b.Build()
	// ... pass m to fsmsim.New(m)
*/
package dsl
