// Package config loads the static game data: city layout, job list,
// weather seed, and session settings. Malformed or missing data files
// are fatal; the simulation never synthesizes defaults for them.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/courier-city/internal/city"
	"github.com/talgya/courier-city/internal/orders"
	"github.com/talgya/courier-city/internal/weather"
)

// TileDef is one legend entry in city.yaml.
type TileDef struct {
	Name          string  `yaml:"name"`
	Blocked       bool    `yaml:"blocked"`
	SurfaceWeight float64 `yaml:"surface_weight"`
}

// CityFile mirrors city.yaml.
type CityFile struct {
	Name       string             `yaml:"name"`
	GoalIncome float64            `yaml:"goal_income"`
	Start      Point              `yaml:"start"`
	Tiles      []string           `yaml:"tiles"`
	Legend     map[string]TileDef `yaml:"legend"`
}

// Point is a coordinate pair in the data files.
type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

func (p Point) Coord() city.Coord { return city.Coord{X: p.X, Y: p.Y} }

// LoadCity parses city.yaml into a validated map plus the player start
// tile.
func LoadCity(path string) (*city.Map, city.Coord, error) {
	var cf CityFile
	if err := readYAML(path, &cf); err != nil {
		return nil, city.Coord{}, err
	}
	legend := make(map[rune]city.TileInfo, len(cf.Legend))
	for key, def := range cf.Legend {
		runes := []rune(key)
		if len(runes) != 1 {
			return nil, city.Coord{}, fmt.Errorf("%s: legend key %q must be a single character", path, key)
		}
		legend[runes[0]] = city.TileInfo{
			Name:          def.Name,
			Blocked:       def.Blocked,
			SurfaceWeight: def.SurfaceWeight,
		}
	}
	m, err := city.New(cf.Name, cf.Tiles, legend, cf.GoalIncome)
	if err != nil {
		return nil, city.Coord{}, fmt.Errorf("%s: %w", path, err)
	}
	start := cf.Start.Coord()
	if m.Blocked(start.X, start.Y) {
		return nil, city.Coord{}, fmt.Errorf("%s: start tile (%d,%d) is blocked or out of bounds", path, start.X, start.Y)
	}
	return m, start, nil
}

// JobDef is one entry in jobs.yaml.
type JobDef struct {
	ID          string  `yaml:"id"`
	Pickup      Point   `yaml:"pickup"`
	Dropoff     Point   `yaml:"dropoff"`
	Payout      float64 `yaml:"payout"`
	Weight      float64 `yaml:"weight"`
	Priority    int     `yaml:"priority"`
	ReleaseTime float64 `yaml:"release_time"`
}

// JobsFile mirrors jobs.yaml.
type JobsFile struct {
	Jobs []JobDef `yaml:"jobs"`
}

// LoadJobs parses jobs.yaml into fresh orders, validating coordinates
// against the map.
func LoadJobs(path string, m *city.Map) ([]*orders.Order, error) {
	var jf JobsFile
	if err := readYAML(path, &jf); err != nil {
		return nil, err
	}
	if len(jf.Jobs) == 0 {
		return nil, fmt.Errorf("%s: no jobs defined", path)
	}
	seen := make(map[string]bool, len(jf.Jobs))
	out := make([]*orders.Order, 0, len(jf.Jobs))
	for i, j := range jf.Jobs {
		if j.ID == "" {
			return nil, fmt.Errorf("%s: job %d has no id", path, i)
		}
		if seen[j.ID] {
			return nil, fmt.Errorf("%s: duplicate job id %q", path, j.ID)
		}
		seen[j.ID] = true
		for what, pt := range map[string]Point{"pickup": j.Pickup, "dropoff": j.Dropoff} {
			if !m.InBounds(pt.X, pt.Y) {
				return nil, fmt.Errorf("%s: job %q %s (%d,%d) outside the map", path, j.ID, what, pt.X, pt.Y)
			}
		}
		if j.Weight < 0 || j.Payout < 0 || j.ReleaseTime < 0 || j.Priority < 0 {
			return nil, fmt.Errorf("%s: job %q has negative fields", path, j.ID)
		}
		out = append(out, &orders.Order{
			ID:          j.ID,
			Pickup:      j.Pickup.Coord(),
			Dropoff:     j.Dropoff.Coord(),
			Payout:      j.Payout,
			Weight:      j.Weight,
			Priority:    j.Priority,
			ReleaseTime: j.ReleaseTime,
			State:       orders.Available,
		})
	}
	return out, nil
}

// BurstDef is one scheduled burst in weather.yaml.
type BurstDef struct {
	Condition string  `yaml:"condition"`
	StartS    float64 `yaml:"start_s"`
	DurationS float64 `yaml:"duration_s"`
	Intensity float64 `yaml:"intensity"`
}

// WeatherFile mirrors weather.yaml.
type WeatherFile struct {
	City             string                        `yaml:"city"`
	Initial          string                        `yaml:"initial"`
	InitialIntensity float64                       `yaml:"initial_intensity"`
	Transitions      map[string]map[string]float64 `yaml:"transitions"`
	Bursts           []BurstDef                    `yaml:"bursts"`
}

// LoadWeather parses weather.yaml into a model seed.
func LoadWeather(path string) (weather.Seed, error) {
	var wf WeatherFile
	if err := readYAML(path, &wf); err != nil {
		return weather.Seed{}, err
	}
	seed := weather.Seed{
		City:             wf.City,
		Initial:          weather.Condition(wf.Initial),
		InitialIntensity: wf.InitialIntensity,
		Transitions:      make(map[weather.Condition]map[weather.Condition]float64, len(wf.Transitions)),
	}
	for from, row := range wf.Transitions {
		dst := make(map[weather.Condition]float64, len(row))
		for to, p := range row {
			dst[weather.Condition(to)] = p
		}
		seed.Transitions[weather.Condition(from)] = dst
	}
	for _, b := range wf.Bursts {
		seed.Bursts = append(seed.Bursts, weather.Burst{
			Condition: weather.Condition(b.Condition),
			StartS:    b.StartS,
			DurationS: b.DurationS,
			Intensity: b.Intensity,
		})
	}
	return seed, nil
}

// BotDef configures one autonomous courier in game.yaml.
type BotDef struct {
	Name  string `yaml:"name"`
	Tier  string `yaml:"tier"`
	Start Point  `yaml:"start"`
}

// GameFile mirrors game.yaml: session settings and service wiring.
type GameFile struct {
	Player     string   `yaml:"player"`
	DurationS  float64  `yaml:"duration_s"`
	Seed       int64    `yaml:"seed"`
	Bots       []BotDef `yaml:"bots"`
	ListenAddr string   `yaml:"listen_addr"`
	AdminToken string   `yaml:"admin_token"`
	DBPath     string   `yaml:"db_path"`
}

// LoadGame parses game.yaml, filling the defaults a session needs.
func LoadGame(path string) (GameFile, error) {
	var gf GameFile
	if err := readYAML(path, &gf); err != nil {
		return GameFile{}, err
	}
	if gf.Player == "" {
		gf.Player = "courier"
	}
	if gf.DurationS <= 0 {
		gf.DurationS = 600
	}
	if gf.ListenAddr == "" {
		gf.ListenAddr = ":8080"
	}
	for _, b := range gf.Bots {
		if _, err := parseTier(b.Tier); err != nil {
			return GameFile{}, fmt.Errorf("%s: bot %q: %w", path, b.Name, err)
		}
	}
	return gf, nil
}

// parseTier validates without importing the bot package, keeping
// config a leaf.
func parseTier(s string) (string, error) {
	switch s {
	case "random", "greedy":
		return s, nil
	default:
		return "", fmt.Errorf("unknown bot tier %q", s)
	}
}

func readYAML(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
