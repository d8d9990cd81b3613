// Package commands maps slash commands and message components to handlers.
package commands

import (
	"context"
	stderrors "errors"
	"sort"
	"strconv"
	"strings"

	"github.com/pokedi/edfc/internal/accounts"
	"github.com/pokedi/edfc/internal/errors"
	"github.com/pokedi/edfc/internal/logging"
	"github.com/pokedi/edfc/internal/models"
)

const (
	selectAccountSuffix = "_select_account"
	actionPrefix        = "action_"
)

// notLoggedIn is shown when a user without a usable token runs a command.
const notLoggedIn = "You are not logged in, or your Frontier session has expired. Use /login to link your account."

// Handler is one slash command or component.
type Handler interface {
	Execute(ctx context.Context, req *Request) (*Reply, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) (*Reply, error)

func (f HandlerFunc) Execute(ctx context.Context, req *Request) (*Reply, error) {
	return f(ctx, req)
}

// OptionSpec describes a command option.
type OptionSpec struct {
	Name        string
	Description string
	Kind        OptionKind
	Required    bool
}

// OptionKind is the value type of an option.
type OptionKind int

const (
	OptionString OptionKind = iota
	OptionInteger
	OptionBoolean
)

// Command is a registered handler plus its metadata.
type Command struct {
	Name        string
	Description string
	Options     []OptionSpec
	// RequiresLogin runs the handler behind the shared login check.
	RequiresLogin bool
	// Deferred marks handlers that call upstream and may be slow.
	Deferred bool
	Handler  Handler
}

// Registry dispatches requests to commands and components.
type Registry struct {
	commands   map[string]*Command
	components map[string]*Command
	accounts   *accounts.Registry
	logger     *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(registry *accounts.Registry, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Registry{
		commands:   make(map[string]*Command),
		components: make(map[string]*Command),
		accounts:   registry,
		logger:     logger,
	}
}

// Register adds a slash command.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
}

// RegisterComponent adds a component handler keyed by custom id.
func (r *Registry) RegisterComponent(cmd *Command) {
	r.components[cmd.Name] = cmd
}

// Commands lists slash commands sorted by name.
func (r *Registry) Commands() []*Command {
	out := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup resolves a request to its command. Component ids of the form
// "<command>_select_account" and "action_<command>" re-run that command; the
// selected account is copied into the account option.
func (r *Registry) Lookup(req *Request) (*Command, bool) {
	if req.Kind == KindCommand {
		cmd, ok := r.commands[req.Name]
		return cmd, ok
	}

	if cmd, ok := r.components[req.Name]; ok {
		return cmd, true
	}
	if base, ok := strings.CutSuffix(req.Name, selectAccountSuffix); ok {
		cmd, found := r.commands[base]
		if found && len(req.Values) > 0 {
			req.setOption(OptionAccount, req.Values[0])
		}
		return cmd, found
	}
	if base, ok := strings.CutPrefix(req.Name, actionPrefix); ok {
		cmd, found := r.commands[base]
		return cmd, found
	}
	return nil, false
}

// IsDeferred reports whether the request should be answered asynchronously.
func (r *Registry) IsDeferred(req *Request) bool {
	probe := *req
	cmd, ok := r.Lookup(&probe)
	return ok && cmd.Deferred
}

// Dispatch runs the request and always produces a reply. Errors are logged
// and turned into user-facing messages.
func (r *Registry) Dispatch(ctx context.Context, req *Request) *Reply {
	cmd, ok := r.Lookup(req)
	if !ok {
		r.logger.WarnWithContext(ctx, "unknown interaction", "kind", req.Kind.String(), "name", req.Name)
		return errorReply("Unknown command.")
	}

	reply, err := r.execute(ctx, cmd, req)
	if err != nil {
		r.logger.ErrorWithContext(ctx, "interaction failed",
			"kind", req.Kind.String(),
			"name", req.Name,
			"user_id", req.UserID,
			"error", err,
		)
		return errorReply(userMessage(err))
	}
	if reply == nil {
		return textReply("Done.")
	}
	return reply
}

func (r *Registry) execute(ctx context.Context, cmd *Command, req *Request) (*Reply, error) {
	if !cmd.RequiresLogin {
		return cmd.Handler.Execute(ctx, req)
	}
	return r.requireLogin(cmd.Handler).Execute(ctx, req)
}

// requireLogin wraps a handler with the login check and resolves the
// account and environment options onto the request.
func (r *Registry) requireLogin(next Handler) Handler {
	return HandlerFunc(func(ctx context.Context, req *Request) (*Reply, error) {
		linked, err := r.accounts.ListAccounts(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		if len(linked) == 0 {
			return textReply(notLoggedIn), nil
		}

		accountID, given, err := req.IntOption(OptionAccount)
		if err != nil {
			return errorReply(err.Error()), nil
		}
		if given {
			if _, ok := linked.FindByID(accountID); !ok {
				return nil, errors.ErrInvalidAccount
			}
			req.AccountID = accountID
		}
		req.Env = models.EnvironmentFor(req.BoolOption(OptionBeta))

		return next.Execute(ctx, req)
	})
}

// userMessage adds command-specific wording on top of errors.UserMessage.
func userMessage(err error) string {
	var refresh *errors.ErrTokenRefresh
	if stderrors.As(err, &refresh) {
		return notLoggedIn
	}
	return errors.UserMessage(err)
}

// accountPicker is a select menu that re-runs command for another account.
func accountPicker(command string, linked models.AccountSlice, current int64) Component {
	opts := make([]SelectOption, 0, len(linked))
	for i := range linked {
		opts = append(opts, SelectOption{
			Label:   linked[i].DisplayName(),
			Value:   strconv.FormatInt(linked[i].ID, 10),
			Default: linked[i].ID == current,
		})
	}
	return Component{
		Kind:     ComponentSelect,
		CustomID: command + selectAccountSuffix,
		Label:    "Select account",
		Options:  opts,
	}
}
