package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateRows(t *testing.T) {
	for i := 0; i < 3; i++ {
		var b Board
		b[i][0], b[i][1], b[i][2] = X, X, X
		assert.Equal(t, Win, Evaluate(b), "row %d", i)
	}
}

func TestEvaluateColumns(t *testing.T) {
	for j := 0; j < 3; j++ {
		var b Board
		b[0][j], b[1][j], b[2][j] = O, O, O
		assert.Equal(t, Win, Evaluate(b), "column %d", j)
	}
}

func TestEvaluateDiagonals(t *testing.T) {
	var main Board
	main[0][0], main[1][1], main[2][2] = X, X, X
	assert.Equal(t, Win, Evaluate(main))

	var anti Board
	anti[0][2], anti[1][1], anti[2][0] = O, O, O
	assert.Equal(t, Win, Evaluate(anti))
}

func TestEvaluateTie(t *testing.T) {
	b := Board{
		{X, O, X},
		{X, O, O},
		{O, X, X},
	}
	assert.Equal(t, Tie, Evaluate(b))
}

func TestEvaluateInPlay(t *testing.T) {
	var empty Board
	assert.Equal(t, InPlay, Evaluate(empty))

	b := Board{
		{X, O, Empty},
		{Empty, X, Empty},
		{Empty, Empty, Empty},
	}
	assert.Equal(t, InPlay, Evaluate(b))
}

func TestEvaluateDeterministic(t *testing.T) {
	b := Board{
		{X, O, X},
		{O, X, Empty},
		{Empty, Empty, X},
	}
	first := Evaluate(b)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Evaluate(b))
	}
}

func TestSwapInvolution(t *testing.T) {
	boards := []Board{
		{},
		{{X, O, X}, {O, X, O}, {X, O, X}},
		{{X, Empty, O}, {Empty, X, Empty}, {O, Empty, Empty}},
	}
	for _, b := range boards {
		assert.Equal(t, b, Swap(Swap(b)))
	}
}

func TestSwapExchangesMarks(t *testing.T) {
	b := Board{{X, O, Empty}, {}, {}}
	s := Swap(b)
	assert.Equal(t, O, s[0][0])
	assert.Equal(t, X, s[0][1])
	assert.Equal(t, Empty, s[0][2])
}
