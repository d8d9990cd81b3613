package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pokedi/edfc/internal/capi"
)

const maxListed = 10

func renderProfile(payload []byte) (Embed, error) {
	p, err := capi.ParseProfile(payload)
	if err != nil {
		return Embed{}, err
	}
	fields := []Field{
		{Name: "Credits", Value: formatNumber(p.Commander.Credits) + " CR", Inline: true},
		{Name: "Debt", Value: formatNumber(p.Commander.Debt) + " CR", Inline: true},
		{Name: "Docked", Value: yesNo(p.Commander.Docked), Inline: true},
	}
	if p.LastSystem != nil {
		fields = append(fields, Field{Name: "System", Value: p.LastSystem.Name, Inline: true})
	}
	if p.LastStarport != nil {
		fields = append(fields, Field{Name: "Starport", Value: p.LastStarport.Name, Inline: true})
	}
	if p.Ship != nil {
		fields = append(fields, Field{Name: "Ship", Value: shipLabel(*p.Ship), Inline: true})
	}
	return Embed{Title: "CMDR " + p.Commander.Name, Color: colorOrange, Fields: fields}, nil
}

func renderCarrier(payload []byte) (Embed, error) {
	c, err := capi.ParseCarrier(payload)
	if err != nil {
		return Embed{}, err
	}
	title := c.DisplayName()
	if title == "" {
		title = c.Name.Callsign
	}
	return Embed{
		Title: title,
		Color: colorOrange,
		Fields: []Field{
			{Name: "Callsign", Value: orDash(c.Name.Callsign), Inline: true},
			{Name: "System", Value: orDash(c.CurrentStarSystem), Inline: true},
			{Name: "Balance", Value: formatNumberString(c.Balance.String()) + " CR", Inline: true},
			{Name: "Fuel", Value: orDash(c.Fuel.String()), Inline: true},
			{Name: "State", Value: orDash(c.State), Inline: true},
			{Name: "Docking", Value: orDash(c.DockingAccess), Inline: true},
		},
	}, nil
}

// maxEmbedFields is Discord's per-embed field limit.
const maxEmbedFields = 25

// renderCargo sums the carrier's cargo stacks per commodity, largest first.
// Stacks without a quantity or value are skipped.
func renderCargo(payload []byte) (Embed, error) {
	c, err := capi.ParseCarrier(payload)
	if err != nil {
		return Embed{}, err
	}

	totals := make(map[string]int64)
	for _, item := range c.Cargo {
		if item.Qty <= 0 || item.Value <= 0 {
			continue
		}
		totals[item.Label()] += item.Qty
	}
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if totals[names[i]] != totals[names[j]] {
			return totals[names[i]] > totals[names[j]]
		}
		return names[i] < names[j]
	})

	title := c.DisplayName()
	if title == "" {
		title = c.Name.Callsign
	}
	embed := Embed{Title: "Cargo: " + title, Color: colorSuccess}
	if len(names) == 0 {
		embed.Description = "The carrier hold is empty."
		return embed, nil
	}

	for i, name := range names {
		if i == maxEmbedFields-1 && len(names) > maxEmbedFields {
			embed.Fields = append(embed.Fields, Field{Name: "Other", Value: fmt.Sprintf("and %d more", len(names)-i), Inline: true})
			break
		}
		embed.Fields = append(embed.Fields, Field{Name: name, Value: formatNumber(totals[name]) + " t", Inline: true})
	}
	return embed, nil
}

type marketPayload struct {
	Name        string `json:"name"`
	Commodities []struct {
		Name      string `json:"name"`
		LocName   string `json:"locName"`
		BuyPrice  int64  `json:"buyPrice"`
		SellPrice int64  `json:"sellPrice"`
		Stock     int64  `json:"stock"`
		Demand    int64  `json:"demand"`
	} `json:"commodities"`
}

func renderMarket(payload []byte) (Embed, error) {
	var m marketPayload
	if err := json.Unmarshal(payload, &m); err != nil {
		return Embed{}, err
	}
	sort.Slice(m.Commodities, func(i, j int) bool { return m.Commodities[i].SellPrice > m.Commodities[j].SellPrice })

	var lines []string
	for i, c := range m.Commodities {
		if i == maxListed {
			break
		}
		name := c.LocName
		if name == "" {
			name = c.Name
		}
		lines = append(lines, fmt.Sprintf("%s: sell %s / buy %s", name, formatNumber(c.SellPrice), formatNumber(c.BuyPrice)))
	}
	embed := Embed{
		Title:       "Market: " + orDash(m.Name),
		Description: fmt.Sprintf("%d commodities", len(m.Commodities)),
		Color:       colorInfo,
	}
	if len(lines) > 0 {
		embed.Fields = []Field{{Name: "Top sell prices", Value: strings.Join(lines, "\n")}}
	}
	return embed, nil
}

type shipyardPayload struct {
	Name    string                     `json:"name"`
	Modules map[string]json.RawMessage `json:"modules"`
	Ships   struct {
		List map[string]struct {
			Name     string `json:"name"`
			BaseCost int64  `json:"basevalue"`
		} `json:"shipyard_list"`
	} `json:"ships"`
}

func renderShipyard(payload []byte) (Embed, error) {
	var s shipyardPayload
	if err := json.Unmarshal(payload, &s); err != nil {
		return Embed{}, err
	}
	names := make([]string, 0, len(s.Ships.List))
	for _, ship := range s.Ships.List {
		names = append(names, ship.Name)
	}
	sort.Strings(names)
	embed := Embed{
		Title:       "Shipyard: " + orDash(s.Name),
		Description: fmt.Sprintf("%d ships, %d modules", len(names), len(s.Modules)),
		Color:       colorInfo,
	}
	if len(names) > 0 {
		embed.Fields = []Field{{Name: "Ships", Value: strings.Join(truncate(names), ", ")}}
	}
	return embed, nil
}

func renderCommunityGoals(payload []byte) (Embed, error) {
	goals, err := goalList(payload)
	if err != nil {
		return Embed{}, err
	}
	embed := Embed{
		Title:       "Community Goals",
		Description: fmt.Sprintf("%d active goal(s)", len(goals)),
		Color:       colorSuccess,
	}
	for i, g := range goals {
		if i == maxListed {
			break
		}
		title := stringField(g, "title", "name")
		where := stringField(g, "starsystem_name", "system")
		embed.Fields = append(embed.Fields, Field{Name: orDash(title), Value: orDash(where)})
	}
	return embed, nil
}

// goalList accepts a bare array or an object wrapping one.
func goalList(payload []byte) ([]map[string]interface{}, error) {
	var list []map[string]interface{}
	if err := json.Unmarshal(payload, &list); err == nil {
		return list, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(payload, &wrapped); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(wrapped))
	for k := range wrapped {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := json.Unmarshal(wrapped[k], &list); err == nil {
			return list, nil
		}
	}
	return nil, nil
}

func profileView(render func(*capi.Profile) Embed) func([]byte) (Embed, error) {
	return func(payload []byte) (Embed, error) {
		p, err := capi.ParseProfile(payload)
		if err != nil {
			return Embed{}, err
		}
		return render(p), nil
	}
}

func renderShips(p *capi.Profile) Embed {
	lines := make([]string, 0, len(p.Ships))
	for _, ship := range p.Ships {
		line := shipLabel(ship)
		if ship.StarSystem != nil {
			line += " @ " + ship.StarSystem.Name
		}
		lines = append(lines, line)
	}
	embed := Embed{Title: "Ships", Description: fmt.Sprintf("%d ship(s)", len(lines)), Color: colorInfo}
	if len(lines) > 0 {
		embed.Fields = []Field{{Name: "Fleet", Value: strings.Join(truncate(lines), "\n")}}
	}
	return embed
}

func renderSquadron(p *capi.Profile) Embed {
	if p.Squadron == nil || p.Squadron.Name == "" {
		return Embed{Title: "Squadron", Description: "Not in a squadron.", Color: colorInfo}
	}
	return Embed{
		Title: p.Squadron.Name,
		Color: colorInfo,
		Fields: []Field{
			{Name: "Tag", Value: orDash(p.Squadron.Tag), Inline: true},
			{Name: "Rank", Value: strconv.Itoa(p.Squadron.Rank), Inline: true},
		},
	}
}

func renderLastStarport(p *capi.Profile) Embed {
	return placeEmbed("Last starport", p.LastStarport)
}

func renderLastSystem(p *capi.Profile) Embed {
	return placeEmbed("Last system", p.LastSystem)
}

func placeEmbed(title string, place *capi.Place) Embed {
	if place == nil {
		return Embed{Title: title, Description: "Unknown.", Color: colorInfo}
	}
	return Embed{
		Title:       title,
		Description: place.Name,
		Color:       colorInfo,
		Fields:      []Field{{Name: "Faction", Value: orDash(place.Faction), Inline: true}},
	}
}

func renderSuit(p *capi.Profile) Embed {
	if p.Suit == nil {
		return Embed{Title: "Suit", Description: "No suit equipped.", Color: colorInfo}
	}
	name := p.Suit.LocName
	if name == "" {
		name = p.Suit.Name
	}
	return Embed{Title: "Suit", Description: name, Color: colorInfo}
}

func shipLabel(s capi.Ship) string {
	if s.ShipName != "" {
		return fmt.Sprintf("%s (%s)", s.ShipName, s.Name)
	}
	return s.Name
}

func stringField(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func truncate(items []string) []string {
	if len(items) <= maxListed {
		return items
	}
	out := append([]string{}, items[:maxListed]...)
	return append(out, fmt.Sprintf("and %d more", len(items)-maxListed))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func formatNumberString(s string) string {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return orDash(s)
	}
	return formatNumber(n)
}

// formatNumber groups digits with commas.
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
