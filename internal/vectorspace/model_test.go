package vectorspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ModelSuite struct {
	suite.Suite
	model *Model
}

func (s *ModelSuite) SetupTest() {
	s.model = NewModel(Options{NGramMin: 1, NGramMax: 3, MinDocFreq: 1})
}

func TestModelSuite(t *testing.T) {
	suite.Run(t, new(ModelSuite))
}

// =============================================================================
// GOOD SCENARIOS - Expected normal operations
// =============================================================================

func (s *ModelSuite) TestFitTransform_IdenticalTextsScoreOne() {
	s.model.Fit([]string{
		"cs101 problemset 3 module 3",
		"cs101 problemset 3 module 3",
		"ee230 lab report",
	})

	a, err := s.model.Transform("cs101 problemset 3 module 3")
	s.Require().NoError(err)
	b, err := s.model.Transform("cs101 problemset 3 module 3")
	s.Require().NoError(err)

	s.InDelta(1.0, Cosine(a, b), 1e-9)
}

func (s *ModelSuite) TestFitTransform_DisjointTextsScoreZero() {
	s.model.Fit([]string{
		"cs101 problemset deadline",
		"gardening tips tomatoes",
	})

	a, err := s.model.Transform("cs101 problemset deadline")
	s.Require().NoError(err)
	b, err := s.model.Transform("gardening tips tomatoes")
	s.Require().NoError(err)

	s.Zero(Cosine(a, b))
}

func (s *ModelSuite) TestFit_MinDocFrequencyDropsRareTerms() {
	model := NewModel(Options{NGramMin: 1, NGramMax: 1, MinDocFreq: 2})
	model.Fit([]string{
		"cs101 deadline reminder",
		"cs101 lecture notes",
		"singleton term",
	})

	// "cs101" appears in two documents, "singleton" in one.
	vec, err := model.Transform("cs101 singleton")
	require.NoError(s.T(), err)

	s.Contains(vec, "cs101")
	s.NotContains(vec, "singleton")
}

func (s *ModelSuite) TestTransform_L2Normalized() {
	s.model.Fit([]string{"cs101 module deadline", "cs101 project kickoff"})

	vec, err := s.model.Transform("cs101 module deadline deadline")
	s.Require().NoError(err)

	var norm float64
	for _, w := range vec {
		norm += w * w
	}
	s.InDelta(1.0, norm, 1e-9)
}

func (s *ModelSuite) TestTerms_NGramSpan() {
	model := NewModel(Options{NGramMin: 1, NGramMax: 2, MinDocFreq: 1})
	terms := model.terms("cs101 module deadline")

	s.Contains(terms, "cs101")
	s.Contains(terms, "module deadline")
	s.NotContains(terms, "cs101 module deadline")
}

// =============================================================================
// BAD SCENARIOS - Error conditions
// =============================================================================

func (s *ModelSuite) TestTransform_BeforeFitFailsFast() {
	model := NewModel(Options{})
	_, err := model.Transform("anything")
	s.Error(err)
	s.False(model.Fitted())
}

// =============================================================================
// EDGE CASES
// =============================================================================

func (s *ModelSuite) TestTokenize_DropsStopWordsAndShortTokens() {
	tokens := tokenize("The deadline for CS101 is on a Friday")
	assert.Equal(s.T(), []string{"deadline", "cs101", "friday"}, tokens)
}

func (s *ModelSuite) TestCosine_EmptyVectors() {
	s.Zero(Cosine(Vector{}, Vector{"a": 1}))
	s.Zero(Cosine(nil, nil))
}

func (s *ModelSuite) TestFit_EmptyCorpus() {
	s.model.Fit(nil)
	s.True(s.model.Fitted())
	vec, err := s.model.Transform("anything")
	s.NoError(err)
	s.Empty(vec)
}

func (s *ModelSuite) TestCosine_BoundedForOverlappingTexts() {
	s.model.Fit([]string{
		"cs101 problemset 3 reminder",
		"cs101 module 3 due",
	})

	a, _ := s.model.Transform("cs101 problemset 3 reminder")
	b, _ := s.model.Transform("cs101 module 3 due")

	sim := Cosine(a, b)
	s.GreaterOrEqual(sim, 0.0)
	s.LessOrEqual(sim, 1.0)
	s.Greater(sim, 0.0, "shared cs101 term should produce overlap")
}
