package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pokedi/edfc/internal/models"
)

// Kind tells slash commands and message components apart.
type Kind int

const (
	KindCommand Kind = iota
	KindComponent
)

func (k Kind) String() string {
	if k == KindComponent {
		return "component"
	}
	return "command"
}

// Option names shared by the resource commands.
const (
	OptionAccount = "account"
	OptionBeta    = "beta"
	OptionYear    = "year"
	OptionMonth   = "month"
	OptionDay     = "day"
)

// Request is one user interaction.
type Request struct {
	Kind    Kind
	UserID  string
	Name    string
	Options map[string]string
	Values  []string

	// Filled in by the login wrapper for handlers that require login.
	AccountID int64
	Env       models.Environment
}

// Option returns a string option or "".
func (r *Request) Option(name string) string {
	if r.Options == nil {
		return ""
	}
	return strings.TrimSpace(r.Options[name])
}

// IntOption parses an integer option. ok is false when it is absent.
func (r *Request) IntOption(name string) (value int64, ok bool, err error) {
	raw := r.Option(name)
	if raw == "" {
		return 0, false, nil
	}
	value, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("option %s must be a number", name)
	}
	return value, true, nil
}

// BoolOption accepts true/false, yes/no and 1/0.
func (r *Request) BoolOption(name string) bool {
	switch strings.ToLower(r.Option(name)) {
	case "true", "yes", "1", "y":
		return true
	default:
		return false
	}
}

func (r *Request) setOption(name, value string) {
	if r.Options == nil {
		r.Options = make(map[string]string)
	}
	r.Options[name] = value
}
