package ai

import (
	"math"
	"strconv"
)

// CharacterID identifies a game entity. It is also used as the AI id.
type CharacterID int64

// NoCharacter is the zero id that is never assigned to a live entity.
const NoCharacter CharacterID = -1

func (id CharacterID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Character is the minimal capability the engine requires from a game entity.
// Position may be read while another AI is ticked; implementations must be
// safe for concurrent use when the zone runs with more than one worker.
type Character interface {
	ID() CharacterID
	Position() Vec3
	// Update advances entity-level state (animation, movement integration).
	Update(dt int64, debuggingActive bool)
}

// Mover is implemented by characters that can be moved by steering nodes.
type Mover interface {
	Character
	Speed() float64
	Orientation() float64
	SetPosition(pos Vec3)
	SetOrientation(orientation float64)
}

// Attributer exposes free-form numeric attributes (health, mana, ...) used by
// expression conditions and the debugger.
type Attributer interface {
	Attributes() map[string]float64
}

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Scale(f float64) Vec3 {
	return Vec3{v.X * f, v.Y * f, v.Z * f}
}

func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func (v Vec3) Distance(o Vec3) float64 {
	return v.Sub(o).Length()
}

// Normalize returns a unit vector or the zero vector for zero input.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// IsZero reports whether every component is zero.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Angle returns the heading of the vector on the XZ plane in radians.
func (v Vec3) Angle() float64 {
	return math.Atan2(v.Z, v.X)
}

// FromAngle builds a unit vector on the XZ plane for the given heading.
func FromAngle(angle float64) Vec3 {
	return Vec3{X: math.Cos(angle), Z: math.Sin(angle)}
}
