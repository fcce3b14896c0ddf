// fake-coretemp writes CSV logs shaped like Core Temp's so the exporter can be
// exercised on machines without Core Temp installed.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/LambdaLabs/coretemp_exporter/dateformat"
)

// Generator produces the preamble, header and records of one log file.
type Generator struct {
	Cores  int
	Layout string
	rng    *rand.Rand
}

// NewGenerator returns a *Generator whose random readings are seeded by seed.
func NewGenerator(cores int, layout string, seed uint64) *Generator {
	return &Generator{
		Cores:  cores,
		Layout: layout,
		rng:    rand.New(rand.NewPCG(seed, seed)),
	}
}

// Preamble is the block Core Temp writes before the column header.
func (g *Generator) Preamble() []string {
	return []string{
		"Core Temp 1.18.1 - www.alcpu.com",
		"",
		"CPU Model:,Fake CPU",
		"Platform:,Simulated",
		"",
	}
}

// Header returns the column header line.
func (g *Generator) Header() string {
	cols := []string{"Time"}
	for n := 0; n < g.Cores; n++ {
		cols = append(cols,
			fmt.Sprintf("Core #%d", n),
			fmt.Sprintf("Core %d Temp. (°)", n),
			fmt.Sprintf("Core %d Load (%%)", n),
		)
	}
	cols = append(cols, "CPU 0 Power (W)", "Core Speed (MHz)")
	return strings.Join(cols, ",")
}

// Record returns one data line stamped with now.
func (g *Generator) Record(now time.Time) string {
	cols := []string{now.Format(g.Layout)}
	for n := 0; n < g.Cores; n++ {
		cols = append(cols,
			strconv.Itoa(n),
			strconv.Itoa(35+g.rng.IntN(40)),
			strconv.Itoa(g.rng.IntN(101)),
		)
	}
	power := 10 + g.rng.Float64()*80
	cols = append(cols, strconv.FormatFloat(power, 'f', 2, 64), strconv.Itoa(800+g.rng.IntN(4000)))
	return strings.Join(cols, ",")
}

// WriteLog writes a complete log with count records spaced step apart,
// starting at start.
func (g *Generator) WriteLog(w io.Writer, start time.Time, step time.Duration, count int) error {
	bw := bufio.NewWriter(w)
	for _, line := range g.Preamble() {
		fmt.Fprintln(bw, line)
	}
	fmt.Fprintln(bw, g.Header())
	for i := 0; i < count; i++ {
		fmt.Fprintln(bw, g.Record(start.Add(time.Duration(i)*step)))
	}
	return bw.Flush()
}

func openLog(dir string, g *Generator, now time.Time) (*os.File, error) {
	name := filepath.Join(dir, fmt.Sprintf("CT-Log %s.csv", now.Format("2006-01-02 15-04-05.000")))
	f, err := os.Create(name) //nolint:gosec // Output path is chosen by the developer
	if err != nil {
		return nil, err
	}
	if err := g.WriteLog(f, now, 0, 0); err != nil {
		f.Close()
		return nil, err
	}
	log.Printf("Writing %s", name)
	return f, nil
}

func main() {
	var (
		dir        = flag.String("dir", "", "Directory to write logs into")
		cores      = flag.Int("cores", 4, "Number of cores to simulate")
		interval   = flag.Duration("interval", time.Second, "Time between records")
		dateFormat = flag.String("date-format", "HH:mm:ss MM/dd/yy", "Core Temp date format for the Time column")
		rotate     = flag.Int("rotate", 0, "Start a new log file after this many records (0 = never)")
		count      = flag.Int("count", 0, "Stop after this many records (0 = run until interrupted)")
	)
	flag.Parse()

	if *dir == "" {
		log.Fatal("Please specify the -dir flag")
	}
	layout, err := dateformat.Layout(*dateFormat)
	if err != nil {
		log.Fatalf("Invalid date format: %v", err)
	}
	if err := os.MkdirAll(*dir, 0o755); err != nil { //nolint:gosec // Log directory must be readable by the exporter
		log.Fatalf("Failed to create %s: %v", *dir, err)
	}

	g := NewGenerator(*cores, layout, uint64(time.Now().UnixNano()))
	f, err := openLog(*dir, g, time.Now())
	if err != nil {
		log.Fatalf("Failed to create log: %v", err)
	}
	defer func() { f.Close() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	inFile := 0
	for written := 0; *count == 0 || written < *count; written++ {
		select {
		case <-sig:
			log.Println("Stopping")
			return
		case now := <-ticker.C:
			if *rotate > 0 && inFile == *rotate {
				f.Close()
				if f, err = openLog(*dir, g, now); err != nil {
					log.Fatalf("Failed to rotate log: %v", err)
				}
				inFile = 0
			}
			if _, err := fmt.Fprintln(f, g.Record(now)); err != nil {
				log.Fatalf("Failed to write record: %v", err)
			}
			inFile++
		}
	}
}
