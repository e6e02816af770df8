package decompose

import (
	"normalizer/internal/analyzer"
	"normalizer/internal/dataset"
)

// Cardinality runs the analyzer's suggested schema through Explicit. It
// is the legacy strategy: Dim tables follow column cardinality rather than
// dependencies.
type Cardinality struct {
	Analyzer  *analyzer.Analyzer
	Surrogate SurrogateStrategy
	Logger    Logger
}

// Decompose implements Decomposer.
func (c *Cardinality) Decompose(d *dataset.Dataset) (*Result, error) {
	if err := dataset.CheckInput(d); err != nil {
		return nil, err
	}
	an := c.Analyzer
	if an == nil {
		an = &analyzer.Analyzer{}
	}
	s := an.Suggest(d)
	return (&Explicit{Schema: s, Surrogate: c.Surrogate, Logger: c.Logger}).Decompose(d)
}
