package commands

// Reply is a platform-neutral answer to a command or component interaction.
type Reply struct {
	Content    string
	Ephemeral  bool
	Embeds     []Embed
	Components []Component
}

// Embed is a titled block of fields.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []Field
}

// Field is one name/value pair inside an Embed.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// ComponentKind selects how a Component is shown.
type ComponentKind int

const (
	ComponentButton ComponentKind = iota
	ComponentLinkButton
	ComponentSelect
)

// Component is a button or select menu.
type Component struct {
	Kind     ComponentKind
	CustomID string
	Label    string
	URL      string
	Options  []SelectOption
}

// SelectOption is one entry in a select menu.
type SelectOption struct {
	Label   string
	Value   string
	Default bool
}

const (
	colorInfo    = 0x3b82f6
	colorSuccess = 0x22c55e
	colorError   = 0xef4444
	colorOrange  = 0xf97316
)

func textReply(content string) *Reply {
	return &Reply{Content: content, Ephemeral: true}
}

func errorReply(message string) *Reply {
	return &Reply{
		Ephemeral: true,
		Embeds:    []Embed{{Title: "Error", Description: message, Color: colorError}},
	}
}
