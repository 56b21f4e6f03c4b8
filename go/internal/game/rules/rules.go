package rules

// Cell is a single square on the board.
type Cell uint8

const (
	Empty Cell = iota
	X
	O
)

// Board is a 3x3 grid. Each client plays X from its own perspective; the
// server swaps marks before forwarding so both sides see the canonical view.
type Board [3][3]Cell

// Outcome is the result of evaluating a board position.
type Outcome uint8

const (
	InPlay Outcome = iota
	Win
	Tie
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Tie:
		return "tie"
	default:
		return "in_play"
	}
}

// Evaluate returns Win if either mark holds a completed row, column or
// diagonal, Tie if the board is full with no line, and InPlay otherwise.
// Evaluation is pure: the same board always yields the same outcome.
func Evaluate(b Board) Outcome {
	for i := 0; i < 3; i++ {
		if line(b[i][0], b[i][1], b[i][2]) || line(b[0][i], b[1][i], b[2][i]) {
			return Win
		}
	}
	if line(b[0][0], b[1][1], b[2][2]) || line(b[0][2], b[1][1], b[2][0]) {
		return Win
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if b[i][j] == Empty {
				return InPlay
			}
		}
	}
	return Tie
}

func line(a, b, c Cell) bool {
	return a != Empty && a == b && b == c
}

// Swap exchanges the X and O marks, reorienting the board to the opposing
// side's perspective. Swap is its own inverse.
func Swap(b Board) Board {
	var out Board
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			switch b[i][j] {
			case X:
				out[i][j] = O
			case O:
				out[i][j] = X
			default:
				out[i][j] = Empty
			}
		}
	}
	return out
}
