package vocab

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// Outcome is the judged result of an attempt.
type Outcome int

const (
	Correct Outcome = iota + 1
	Incorrect
)

// ErrorKind classifies a wrong answer. ErrorNone accompanies Correct.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	Substitution
	Conjugation
	Spelling
)

var (
	outcomeNames   = [...]string{Correct: "correct", Incorrect: "incorrect"}
	outcomeByName  = map[string]Outcome{"correct": Correct, "incorrect": Incorrect}
	errorKindNames = [...]string{
		ErrorNone:    "none",
		Substitution: "substitution",
		Conjugation:  "conjugation",
		Spelling:     "spelling",
	}
	errorKindByName = map[string]ErrorKind{
		"none":         ErrorNone,
		"substitution": Substitution,
		"conjugation":  Conjugation,
		"spelling":     Spelling,
	}
)

var (
	_ fmt.Stringer             = Outcome(0)
	_ json.Marshaler           = Outcome(0)
	_ encoding.TextUnmarshaler = (*Outcome)(nil)
	_ fmt.Stringer             = ErrorKind(0)
	_ json.Marshaler           = ErrorKind(0)
	_ encoding.TextUnmarshaler = (*ErrorKind)(nil)
)

// IsValid reports whether o is Correct or Incorrect.
func (o Outcome) IsValid() bool { return o == Correct || o == Incorrect }

func (o Outcome) String() string {
	if o.IsValid() {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	if !o.IsValid() {
		return nil, fmt.Errorf("%w: outcome %d", ErrInvalidInput, int(o))
	}
	return []byte(outcomeNames[o]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	v, ok := outcomeByName[string(text)]
	if !ok {
		return fmt.Errorf("%w: outcome %q", ErrInvalidInput, text)
	}
	*o = v
	return nil
}

// MarshalJSON implements json.Marshaler.
func (o Outcome) MarshalJSON() ([]byte, error) {
	text, err := o.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: outcome %s", ErrInvalidInput, data)
	}
	return o.UnmarshalText([]byte(s))
}

// IsValid reports whether k is one of the declared kinds.
func (k ErrorKind) IsValid() bool { return k >= ErrorNone && k <= Spelling }

func (k ErrorKind) String() string {
	if k.IsValid() {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k ErrorKind) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("%w: error kind %d", ErrInvalidInput, int(k))
	}
	return []byte(errorKindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ErrorKind) UnmarshalText(text []byte) error {
	v, ok := errorKindByName[string(text)]
	if !ok {
		return fmt.Errorf("%w: error kind %q", ErrInvalidInput, text)
	}
	*k = v
	return nil
}

// MarshalJSON implements json.Marshaler.
func (k ErrorKind) MarshalJSON() ([]byte, error) {
	text, err := k.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler.
func (k *ErrorKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: error kind %s", ErrInvalidInput, data)
	}
	return k.UnmarshalText([]byte(s))
}

// Signal ranks how much an error kind says about the learner's knowledge.
// Conjugation and Substitution outrank Spelling slips.
func (k ErrorKind) Signal() int {
	switch k {
	case Conjugation:
		return 3
	case Substitution:
		return 2
	case Spelling:
		return 1
	default:
		return 0
	}
}
