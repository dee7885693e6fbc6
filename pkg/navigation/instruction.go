package navigation

import "fmt"

// Kind is the direction part of an instruction.
type Kind int

const (
	Straight Kind = iota
	Left
	Right
)

func (k Kind) String() string {
	switch k {
	case Straight:
		return "straight"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) mirrored() Kind {
	switch k {
	case Left:
		return Right
	case Right:
		return Left
	default:
		return k
	}
}

// instruction is identified by its kind and target corner. The text
// carries the current distance and changes on every tick.
type instruction struct {
	kind   Kind
	target int
	text   string
}

func newInstruction(kind Kind, target int, distance float64) instruction {
	return instruction{kind: kind, target: target, text: Render(kind, distance)}
}

func (i instruction) sameAs(o instruction) bool {
	return i.kind == o.kind && i.target == o.target
}

// Render formats the spoken text of an instruction.
func Render(kind Kind, distance float64) string {
	switch kind {
	case Left:
		return fmt.Sprintf("Turn left in %.1f meters.", distance)
	case Right:
		return fmt.Sprintf("Turn right in %.1f meters.", distance)
	default:
		return fmt.Sprintf("Walk straight for %.1f meters.", distance)
	}
}
