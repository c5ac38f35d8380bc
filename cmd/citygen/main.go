// Command citygen generates the data files for a courier-city session:
// a noise-derived street grid plus a randomized job board.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	opensimplex "github.com/ojrac/opensimplex-go"
	"gopkg.in/yaml.v3"

	"github.com/talgya/courier-city/internal/config"
)

func main() {
	width := flag.Int("width", 24, "grid width in tiles")
	height := flag.Int("height", 16, "grid height in tiles")
	jobs := flag.Int("jobs", 12, "number of delivery jobs")
	seed := flag.Int64("seed", 42, "generation seed")
	goal := flag.Float64("goal", 500, "income goal that wins the session")
	name := flag.String("name", "noisetown", "city name")
	out := flag.String("out", "data", "output directory")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *width < 8 || *height < 8 {
		slog.Error("grid must be at least 8x8")
		os.Exit(1)
	}

	cityFile := generateCity(*name, *width, *height, *goal, *seed)
	rng := rand.New(rand.NewSource(*seed + 1))
	jobsFile := generateJobs(cityFile, *jobs, rng)
	weatherFile := defaultWeather(*name)

	if err := os.MkdirAll(*out, 0755); err != nil {
		slog.Error("creating output dir", "error", err)
		os.Exit(1)
	}
	for file, doc := range map[string]any{
		"city.yaml":    cityFile,
		"jobs.yaml":    jobsFile,
		"weather.yaml": weatherFile,
	} {
		if err := writeYAML(filepath.Join(*out, file), doc); err != nil {
			slog.Error("writing file", "file", file, "error", err)
			os.Exit(1)
		}
	}

	slog.Info("city generated",
		"name", *name,
		"size", fmt.Sprintf("%dx%d", *width, *height),
		"jobs", len(jobsFile.Jobs),
		"out", *out,
	)
}

// Tile legend shared by generation and the job placer. Buildings and
// water block movement; roads are faster than streets, parks slower.
var legend = map[string]config.TileDef{
	"#": {Name: "building", Blocked: true},
	"~": {Name: "water", Blocked: true},
	"r": {Name: "road", SurfaceWeight: 1.2},
	".": {Name: "street", SurfaceWeight: 1.0},
	"p": {Name: "park", SurfaceWeight: 0.9},
}

// generateCity derives tiles from two independent noise layers: one
// for built density, one for green/water cover.
func generateCity(name string, width, height int, goal float64, seed int64) config.CityFile {
	density := opensimplex.NewNormalized(seed)
	cover := opensimplex.NewNormalized(seed + 1)

	rows := make([]string, height)
	for y := 0; y < height; y++ {
		var sb strings.Builder
		for x := 0; x < width; x++ {
			sb.WriteString(tileFor(x, y, density, cover))
		}
		rows[y] = sb.String()
	}

	// Arterial roads every few rows and columns keep every district
	// reachable even when noise walls off a neighborhood.
	for y := 0; y < height; y++ {
		row := []rune(rows[y])
		for x := 0; x < width; x++ {
			if y%5 == 2 || x%7 == 3 {
				row[x] = 'r'
			}
		}
		rows[y] = string(row)
	}

	start := findStart(rows)

	return config.CityFile{
		Name:       name,
		GoalIncome: goal,
		Start:      start,
		Tiles:      rows,
		Legend:     legend,
	}
}

func tileFor(x, y int, density, cover opensimplex.Noise) string {
	d := octaveNoise(density, float64(x), float64(y), 3, 0.12, 0.5)
	c := octaveNoise(cover, float64(x), float64(y), 2, 0.09, 0.5)

	switch {
	case c > 0.72:
		return "~"
	case d > 0.62:
		return "#"
	case c > 0.55:
		return "p"
	default:
		return "."
	}
}

// octaveNoise layers multiple frequencies for less blobby districts.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}

// findStart returns the walkable tile nearest the grid center.
func findStart(rows []string) config.Point {
	cx, cy := len(rows[0])/2, len(rows)/2
	best := config.Point{X: -1, Y: -1}
	bestDist := 1 << 30
	for y, row := range rows {
		for x, t := range row {
			if legend[string(t)].Blocked {
				continue
			}
			d := absInt(x-cx) + absInt(y-cy)
			if d < bestDist {
				best = config.Point{X: x, Y: y}
				bestDist = d
			}
		}
	}
	return best
}

// generateJobs scatters pickup/dropoff pairs across walkable tiles.
// Payout scales with distance so far-flung jobs are worth the trip.
func generateJobs(cf config.CityFile, n int, rng *rand.Rand) config.JobsFile {
	var walkable []config.Point
	for y, row := range cf.Tiles {
		for x, t := range row {
			if !legend[string(t)].Blocked {
				walkable = append(walkable, config.Point{X: x, Y: y})
			}
		}
	}

	jf := config.JobsFile{Jobs: make([]config.JobDef, 0, n)}
	for i := 0; i < n; i++ {
		pickup := walkable[rng.Intn(len(walkable))]
		dropoff := walkable[rng.Intn(len(walkable))]
		for dropoff == pickup {
			dropoff = walkable[rng.Intn(len(walkable))]
		}

		dist := absInt(pickup.X-dropoff.X) + absInt(pickup.Y-dropoff.Y)
		payout := 15 + float64(dist)*3 + rng.Float64()*10

		var release float64
		if i >= n/2 {
			// Half the board trickles in during the first few minutes.
			release = float64(rng.Intn(240))
		}

		jf.Jobs = append(jf.Jobs, config.JobDef{
			ID:          uuid.NewString()[:8],
			Pickup:      pickup,
			Dropoff:     dropoff,
			Payout:      float64(int(payout*100)) / 100,
			Weight:      0.5 + float64(rng.Intn(5))*0.5,
			Priority:    rng.Intn(3),
			ReleaseTime: release,
		})
	}
	return jf
}

// defaultWeather is a mild Markov chain biased toward clear skies,
// with one storm burst late in the session.
func defaultWeather(city string) config.WeatherFile {
	return config.WeatherFile{
		City:    city,
		Initial: "clear",
		Transitions: map[string]map[string]float64{
			"clear":      {"clear": 0.6, "clouds": 0.25, "wind": 0.15},
			"clouds":     {"clear": 0.3, "clouds": 0.35, "rain_light": 0.2, "fog": 0.15},
			"rain_light": {"clouds": 0.4, "rain_light": 0.3, "rain": 0.3},
			"rain":       {"rain_light": 0.5, "rain": 0.3, "storm": 0.2},
			"storm":      {"rain": 0.7, "storm": 0.3},
			"wind":       {"clear": 0.5, "wind": 0.3, "clouds": 0.2},
			"fog":        {"fog": 0.4, "clouds": 0.6},
		},
		Bursts: []config.BurstDef{
			{Condition: "storm", StartS: 420, DurationS: 60, Intensity: 0.9},
		},
	}
}

func writeYAML(path string, doc any) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
