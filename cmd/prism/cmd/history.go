package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-prism/prism/cmd/prism/internal/config"
	"github.com/go-prism/prism/pkg/store"
)

func init() {
	RegisterCommand(&Command{
		Name:  "history",
		Short: "List recent exploration history",
		Long: `List recently explored objects from the history database.

Each line shows the visit sequence number, timestamp, and the label of
the explored object. The number of lines defaults to the configured
history limit.`,
		Usage: "prism history [count]",
		Run:   runHistory,
	})
}

func runHistory(args []string) error {
	root, err := config.FindProjectRoot()
	if err != nil {
		root, err = os.Getwd()
		if err != nil {
			return err
		}
	}
	cfg, err := config.Resolve(root)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	count := cfg.HistoryLimit
	if len(args) > 0 {
		count, err = strconv.Atoi(args[0])
		if err != nil || count <= 0 {
			return fmt.Errorf("count must be a positive integer, got %q", args[0])
		}
	}

	st, err := store.Open(cfg.HistoryPath)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer st.Close()

	upto, err := st.NextVisitSeq()
	if err != nil {
		return err
	}
	from := upto - count
	if from < 0 {
		from = 0
	}

	shown := 0
	err = st.IterateVisits(from, upto, func(v store.Visit) {
		fmt.Printf("%6d  %s  %s\n", v.Seq, v.At.Format("2006-01-02 15:04:05"), v.Label)
		shown++
	})
	if err != nil {
		return err
	}
	if shown == 0 {
		fmt.Println("no history recorded")
	}
	return nil
}
