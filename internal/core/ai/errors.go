package ai

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownType         = errors.New("unknown type")
	ErrInvalidParameters   = errors.New("invalid parameters")
	ErrWrongChildCount     = errors.New("wrong child count")
	ErrWrongOperandCount   = errors.New("wrong operand count")
	ErrRootHasNoParent     = errors.New("root node has no parent")
	ErrNodeNotFound        = errors.New("node not found")
	ErrCharacterAlreadySet = errors.New("character already bound to ai")
	ErrNilCharacter        = errors.New("character is nil")
	ErrNoBehaviour         = errors.New("ai has no behaviour")
	ErrSyntax              = errors.New("syntax error")
	ErrAIExists            = errors.New("ai already present in zone")
	ErrAINotFound          = errors.New("ai not found in zone")
)

func wrapParams(params string, err error) error {
	return fmt.Errorf("%w %q: %v", ErrInvalidParameters, params, err)
}
