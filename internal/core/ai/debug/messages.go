package debug

import "github.com/zeusync/aitree/internal/core/ai"

const (
	MsgNames            = "names"
	MsgState            = "state"
	MsgCharacterDetails = "character_details"
	MsgCharacterStatic  = "character_static"
	MsgPause            = "pause"
)

// Message is anything the server ships to observers.
type Message interface {
	MessageType() string
}

// Names lists the zones available for debugging.
type Names struct {
	Zones []string `json:"zones"`
}

func (Names) MessageType() string { return MsgNames }

type CharacterState struct {
	ID          int64              `json:"id"`
	Position    ai.Vec3            `json:"position"`
	Orientation float64            `json:"orientation"`
	Attributes  map[string]float64 `json:"attributes,omitempty"`
	Paused      bool               `json:"paused"`
}

// WorldState is the overview of every character in the debugged zone.
type WorldState struct {
	Zone       string           `json:"zone"`
	Time       int64            `json:"time"`
	Characters []CharacterState `json:"characters"`
}

func (WorldState) MessageType() string { return MsgState }

// StateNode is the per-AI view of one tree node.
type StateNode struct {
	NodeID    int32       `json:"node_id"`
	Condition string      `json:"condition"`
	Status    string      `json:"status"`
	LastRun   int64       `json:"last_run"`
	Running   bool        `json:"running"`
	Children  []StateNode `json:"children,omitempty"`
}

// StaticNode is the AI independent description of one tree node.
type StaticNode struct {
	NodeID     int32  `json:"node_id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Parameters string `json:"parameters,omitempty"`
	Condition  string `json:"condition"`
}

type AggroEntry struct {
	ID    int64   `json:"id"`
	Aggro float64 `json:"aggro"`
}

// CharacterDetails is the live state of the selected character.
type CharacterDetails struct {
	CharacterID int64        `json:"character_id"`
	Root        StateNode    `json:"root"`
	Aggro       []AggroEntry `json:"aggro"`
	Filtered    []int64      `json:"filtered,omitempty"`
}

func (CharacterDetails) MessageType() string { return MsgCharacterDetails }

// CharacterStatic describes the tree of the selected character. It is sent
// on selection and after edits.
type CharacterStatic struct {
	CharacterID int64        `json:"character_id"`
	Nodes       []StaticNode `json:"nodes"`
}

func (CharacterStatic) MessageType() string { return MsgCharacterStatic }

type Pause struct {
	Paused bool `json:"paused"`
}

func (Pause) MessageType() string { return MsgPause }
