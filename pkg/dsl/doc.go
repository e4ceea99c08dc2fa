/*
Package dsl provides a fluent Go builder for quest documents.

It is useful for tests, generated content and tools that do not want to
go through YAML files:

	b := dsl.New("hunt")
	b.Objective("start", "talked").Title("Talk to the smith").Go("wolves")
	b.Objective("wolves", "kills >= 3").Milestone().Go("verdict")
	b.Branch("verdict").
		Case("praise", "rep > 10", "won").
		Case("scorn", "true", "lost")
	b.Terminal("won", domain.OutcomeSuccess)
	b.Terminal("lost", domain.OutcomeFailure)

	doc, err := b.Build()

The resulting document still has to pass the validator before it can be compiled.
*/
package dsl
