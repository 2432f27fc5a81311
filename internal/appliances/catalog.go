// Package appliances is the catalogue of common appliances and their rated
// power draw offered when estimating a bill.
package appliances

import (
	"encoding/json"
	"os"
)

// Appliance is a selectable device with its rated power in watts.
type Appliance struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	PowerWatts float64 `json:"power_watts"`
	Icon       string  `json:"icon,omitempty"`
}

const appliancesEnv = "WATTSCOPE_APPLIANCES_JSON"

func defaultAppliances() []Appliance {
	return []Appliance{
		{ID: "tv", Name: "Television", PowerWatts: 150, Icon: "📺"},
		{ID: "fan", Name: "Ceiling Fan", PowerWatts: 75, Icon: "🌀"},
		{ID: "fridge", Name: "Refrigerator", PowerWatts: 150, Icon: "🧊"},
		{ID: "cooler", Name: "Air Cooler", PowerWatts: 200, Icon: "🌬️"},
		{ID: "ac", Name: "Air Conditioner", PowerWatts: 1500, Icon: "❄️"},
		{ID: "mixer", Name: "Mixer Grinder", PowerWatts: 500, Icon: "🥤"},
		{ID: "washer", Name: "Washing Machine", PowerWatts: 500, Icon: "🧺"},
		{ID: "microwave", Name: "Microwave Oven", PowerWatts: 1200, Icon: "🔥"},
		{ID: "heater", Name: "Room Heater", PowerWatts: 2000, Icon: "🔥"},
		{ID: "geyser", Name: "Water Geyser", PowerWatts: 2000, Icon: "💧"},
		{ID: "led", Name: "LED Bulb", PowerWatts: 10, Icon: "💡"},
		{ID: "tube", Name: "Tube Light", PowerWatts: 40, Icon: "💡"},
	}
}

// All returns the catalogue. WATTSCOPE_APPLIANCES_JSON replaces the built-in
// list when it holds a non-empty JSON array; anything else is ignored.
func All() []Appliance {
	raw := os.Getenv(appliancesEnv)
	if raw == "" {
		return defaultAppliances()
	}
	var out []Appliance
	if err := json.Unmarshal([]byte(raw), &out); err != nil || len(out) == 0 {
		return defaultAppliances()
	}
	return out
}

// Get looks up an appliance by id.
func Get(id string) (Appliance, bool) {
	for _, a := range All() {
		if a.ID == id {
			return a, true
		}
	}
	return Appliance{}, false
}
