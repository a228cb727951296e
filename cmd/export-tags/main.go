package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/freeeve/tactics/internal/store"
	"github.com/freeeve/tactics/internal/tactics"
)

func main() {
	var (
		dbDir      = flag.String("db", "./data/tactics", "Database directory")
		outputPath = flag.String("output", "tags.csv", "Output CSV file")
		taggedOnly = flag.Bool("tagged-only", true, "Only export moves with a tactical tag")
	)
	flag.Parse()

	st, err := store.Open(*dbDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	outFile, err := os.Create(*outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create output file: %v\n", err)
		os.Exit(1)
	}
	defer outFile.Close()

	writer := csv.NewWriter(outFile)
	defer writer.Flush()

	header := []string{"game_id", "move_number", "color", "san", "tag", "score_diff", "severity"}
	if err := writer.Write(header); err != nil {
		fmt.Fprintf(os.Stderr, "write header: %v\n", err)
		os.Exit(1)
	}

	var exported, skipped uint64
	err = st.WalkMoveRecords(func(gameID string, rec store.MoveRecord) error {
		if rec.Tag == nil {
			skipped++
			return nil // not yet analyzed
		}
		if *taggedOnly && *rec.Tag == tactics.TagNone {
			skipped++
			return nil
		}
		scoreDiff := ""
		if rec.ScoreDiff != nil {
			scoreDiff = strconv.Itoa(*rec.ScoreDiff)
		}
		severity := ""
		if rec.ErrorLabel != nil {
			severity = rec.ErrorLabel.String()
		}
		row := []string{
			gameID,
			strconv.Itoa(rec.MoveNumber),
			rec.Color,
			rec.SAN,
			rec.Tag.String(),
			scoreDiff,
			severity,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
		exported++
		if exported%10000 == 0 {
			fmt.Printf("Exported %d rows (skipped %d)\n", exported, skipped)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "export: %v\n", err)
		os.Exit(1)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "flush: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nDone! Exported %d rows (skipped %d)\n", exported, skipped)
}
