// gen-dataset writes a synthetic velocity history CSV for exercising
// the detection pipeline without a live feed. Each row is one
// timestep: a background of typical city speeds with noise, plus a
// persistent slow block that detection should pick up as a hot spot.
package main

import (
	"encoding/csv"
	"flag"
	"log"
	"math/rand"
	"os"
	"strconv"
)

var (
	outPath   = flag.String("out", "velocity_history.csv", "Output CSV path")
	gridSize  = flag.Int("grid-size", 10, "Grid dimension")
	steps     = flag.Int("steps", 12, "Number of timesteps to generate")
	baseSpeed = flag.Float64("base", 30, "Background speed in km/h")
	peakSpeed = flag.Float64("peak", 55, "Hot block speed in km/h")
	blockRow  = flag.Int("block-row", 3, "Top row of the hot block")
	blockCol  = flag.Int("block-col", 3, "Left column of the hot block")
	blockSize = flag.Int("block-size", 2, "Hot block edge length in cells")
	noise     = flag.Float64("noise", 2, "Uniform noise amplitude in km/h")
	seed      = flag.Int64("seed", 1, "Random seed")
)

func main() {
	flag.Parse()

	if *gridSize <= 0 || *steps <= 0 {
		log.Fatal("grid-size and steps must be positive")
	}

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", *outPath, err)
	}
	defer f.Close()

	rng := rand.New(rand.NewSource(*seed))
	w := csv.NewWriter(f)

	for step := 0; step < *steps; step++ {
		record := make([]string, 0, *gridSize**gridSize)
		for row := 0; row < *gridSize; row++ {
			for col := 0; col < *gridSize; col++ {
				speed := *baseSpeed
				if inBlock(row, col) {
					speed = *peakSpeed
				}
				speed += (rng.Float64()*2 - 1) * *noise
				if speed < 0 {
					speed = 0
				}
				record = append(record, strconv.FormatFloat(speed, 'f', 2, 64))
			}
		}
		if err := w.Write(record); err != nil {
			log.Fatalf("Failed to write step %d: %v", step, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatalf("Failed to flush %s: %v", *outPath, err)
	}
	log.Printf("wrote %d timesteps of %dx%d grids to %s", *steps, *gridSize, *gridSize, *outPath)
}

func inBlock(row, col int) bool {
	return row >= *blockRow && row < *blockRow+*blockSize &&
		col >= *blockCol && col < *blockCol+*blockSize
}
