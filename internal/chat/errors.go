package chat

import (
	"errors"
	"fmt"
)

// ErrNoChoices is returned when a message-format response carries no choices.
var ErrNoChoices = errors.New("chat: response contained no choices")

// SettingsConversionError is returned when execution settings cannot be
// converted to PromptSettings.
type SettingsConversionError struct {
	// Key is the offending extension key, empty when the settings type
	// itself is unsupported.
	Key   string
	Value any
	Err   error
}

func (e *SettingsConversionError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("chat: unsupported settings type %T", e.Value)
	}
	if e.Err != nil {
		return fmt.Sprintf("chat: invalid value %v (%T) for setting %q: %v", e.Value, e.Value, e.Key, e.Err)
	}
	return fmt.Sprintf("chat: invalid value %v (%T) for setting %q", e.Value, e.Value, e.Key)
}

func (e *SettingsConversionError) Unwrap() error {
	return e.Err
}

// ErrNilHistory is returned when an operation is given no history.
var ErrNilHistory = errors.New("chat: history is nil")
