// Benchmark tool for testing a Kestrel artifact against labeled fraud data.
//
// Usage:
//
//	go run cmd/benchmark/main.go -csv /path/to/creditcard.csv -artifact kestrel_model.json
//
// This tool:
//  1. Loads a labeled transaction export (with Class/is_fraud labels)
//  2. Scores every row through the loaded artifact
//  3. Compares the flag decision (score > threshold) with actual labels
//  4. Calculates precision, recall, F1-score and scoring throughput
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/opensource-finance/kestrel/internal/model"
	"github.com/opensource-finance/kestrel/internal/train"
)

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int // Fraud flagged
	FalsePositives int // Non-fraud flagged
	TrueNegatives  int // Non-fraud passed
	FalseNegatives int // Fraud passed (missed fraud!)

	TotalProcessed int
	TotalFraud     int
	TotalNonFraud  int
}

func main() {
	csvPath := flag.String("csv", "", "Path to labeled CSV file")
	artifactPath := flag.String("artifact", "kestrel_model.json", "Model artifact to benchmark")
	threshold := flag.Int("threshold", 5, "Score filter: rows with score > threshold are flagged")
	limit := flag.Int("limit", 0, "Maximum rows to score (0 = all)")
	verbose := flag.Bool("verbose", false, "Print each mismatch")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/creditcard.csv [-artifact kestrel_model.json]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║          KESTREL BENCHMARK - Labeled Fraud Scoring            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:   %s\n", *csvPath)
	fmt.Printf("Artifact:   %s\n", *artifactPath)
	fmt.Printf("Threshold:  %d\n", *threshold)
	fmt.Println()

	forest, err := model.Load(*artifactPath)
	if err != nil {
		fmt.Printf("ERROR: failed to load artifact: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded artifact: %d features, %d trees\n", forest.NumFeatures(), len(forest.Trees))

	file, err := os.Open(*csvPath)
	if err != nil {
		fmt.Printf("ERROR: failed to open CSV: %v\n", err)
		os.Exit(1)
	}
	ds, err := train.LoadDataset(file)
	file.Close()
	if err != nil {
		fmt.Printf("ERROR: failed to load dataset: %v\n", err)
		os.Exit(1)
	}
	if *limit > 0 && len(ds.Labels) > *limit {
		ds.Vectors = ds.Vectors[:*limit]
		ds.Labels = ds.Labels[:*limit]
	}
	fmt.Printf("✓ Loaded %d labeled rows (%d dropped)\n", len(ds.Labels), ds.Dropped)

	fmt.Println("\nScoring...")
	startTime := time.Now()
	probs, err := forest.PredictProba(ds.Vectors)
	duration := time.Since(startTime)
	if err != nil {
		fmt.Printf("ERROR: scoring failed: %v\n", err)
		os.Exit(1)
	}

	metrics := &Metrics{}
	for i, p := range probs {
		score := int(p * 100)
		predicted := score > *threshold
		actual := ds.Labels[i] == 1

		metrics.TotalProcessed++
		if actual {
			metrics.TotalFraud++
		} else {
			metrics.TotalNonFraud++
		}

		switch {
		case predicted && actual:
			metrics.TruePositives++
		case predicted && !actual:
			metrics.FalsePositives++
		case !predicted && !actual:
			metrics.TrueNegatives++
		default:
			metrics.FalseNegatives++
			if *verbose {
				fmt.Printf("✗ row %d: fraud scored %d, below threshold\n", i, score)
			}
		}
	}

	printResults(metrics, duration)
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Fraud:      %d\n", m.TotalFraud)
	fmt.Printf("   Total Non-Fraud:  %d\n", m.TotalNonFraud)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                 FLAGGED      PASSED")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  F  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("          NF  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flags, how many were actual fraud)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of fraud, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 && duration > 0 {
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Throughput:       %.2f rows/sec\n", rps)
	}

	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most fraud")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some fraud")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant fraud being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most fraud is being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - flags are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
