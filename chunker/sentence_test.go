package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSentences(t *testing.T) {
	assert := assert.New(t)

	text := "Dr. Smith went to Washington. He arrived at 5 p.m. Then he left!  Did he return? yes."
	sentences := SplitSentences(text)

	assert.Equal([]string{
		"Dr. Smith went to Washington.",
		"He arrived at 5 p.m. Then he left!",
		"Did he return? yes.",
	}, sentences)
}

func TestSplitSentencesParagraphs(t *testing.T) {
	assert := assert.New(t)

	text := "First paragraph without a stop\n\n  second paragraph   here [12] too...... End."
	sentences := SplitSentences(text)

	assert.Equal([]string{
		"First paragraph without a stop",
		"second paragraph here too...",
		"End.",
	}, sentences)
}

func TestSplitSentencesEmpty(t *testing.T) {
	assert := assert.New(t)

	assert.Empty(SplitSentences(""))
	assert.Empty(SplitSentences(" \n\n\t "))
}

func TestSplitSentencesNoTerminal(t *testing.T) {
	assert := assert.New(t)

	sentences := SplitSentences("a run-on line with no terminal punctuation")
	assert.Len(sentences, 1)
}

func TestClean(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(`He said “no” and it wasn't expected.`,
		Clean("He said “no” and it wasnâ€™t   expected."))
	assert.Equal(`The "quoted" word.`, Clean("The â€œquotedâ€ word."))
	assert.Equal("Fact here.", Clean("Fact [3] here."))
	assert.Equal("Wait...", Clean("Wait....."))
}
