package capi

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Profile is the subset of /profile the bot reads.
type Profile struct {
	Commander    Commander `json:"commander"`
	LastSystem   *Place    `json:"lastSystem,omitempty"`
	LastStarport *Place    `json:"lastStarport,omitempty"`
	Ship         *Ship     `json:"ship,omitempty"`
	Ships        ShipList  `json:"ships,omitempty"`
	Squadron     *Squadron `json:"squadron,omitempty"`
	Suit         *Suit     `json:"suit,omitempty"`
}

// Commander identifies the player.
type Commander struct {
	ID      int64          `json:"id"`
	Name    string         `json:"name"`
	Credits int64          `json:"credits"`
	Debt    int64          `json:"debt"`
	Docked  bool           `json:"docked"`
	Rank    map[string]int `json:"rank,omitempty"`
}

// Place is a system or station.
type Place struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Faction string `json:"faction,omitempty"`
}

// Ship is one owned ship.
type Ship struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	ShipName   string `json:"shipName,omitempty"`
	ShipID     string `json:"shipID,omitempty"`
	StarSystem *Place `json:"starsystem,omitempty"`
}

// ShipList accepts both the keyed-object and the array form CAPI uses.
type ShipList []Ship

func (l *ShipList) UnmarshalJSON(data []byte) error {
	var list []Ship
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var keyed map[string]Ship
	if err := json.Unmarshal(data, &keyed); err != nil {
		return err
	}
	out := make([]Ship, 0, len(keyed))
	for _, ship := range keyed {
		out = append(out, ship)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	*l = out
	return nil
}

// Squadron is the player's squadron membership.
type Squadron struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Tag  string `json:"tag"`
	Rank int    `json:"rank"`
}

// Suit is the current Odyssey suit.
type Suit struct {
	Name    string `json:"name"`
	LocName string `json:"locName"`
}

// CustomerID is the commander id as a string, or "" when unknown.
func (p *Profile) CustomerID() string {
	if p.Commander.ID == 0 {
		return ""
	}
	return strconv.FormatInt(p.Commander.ID, 10)
}

// ParseProfile decodes a /profile payload.
func ParseProfile(payload []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Carrier is the subset of /fleetcarrier the bot reads.
type Carrier struct {
	Name struct {
		Callsign   string `json:"callsign"`
		VanityName string `json:"vanityName"`
	} `json:"name"`
	CurrentStarSystem string      `json:"currentStarSystem"`
	Balance           json.Number `json:"balance"`
	Fuel              json.Number `json:"fuel"`
	State             string      `json:"state"`
	DockingAccess     string      `json:"dockingAccess"`
	Cargo             []CargoItem `json:"cargo"`
}

// CargoItem is one stack in the carrier hold. A commodity may appear in
// several stacks.
type CargoItem struct {
	Commodity string `json:"commodity"`
	LocName   string `json:"locName"`
	Qty       int64  `json:"qty"`
	Value     int64  `json:"value"`
	Stolen    bool   `json:"stolen"`
	Mission   bool   `json:"mission"`
}

// Label is the localised commodity name, falling back to the symbol.
func (i CargoItem) Label() string {
	if i.LocName != "" {
		return i.LocName
	}
	return i.Commodity
}

// DisplayName is the decoded vanity name.
func (c *Carrier) DisplayName() string {
	return DecodeHexName(c.Name.VanityName)
}

// ParseCarrier decodes a /fleetcarrier payload.
func ParseCarrier(payload []byte) (*Carrier, error) {
	var c Carrier
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
