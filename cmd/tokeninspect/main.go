// Command tokeninspect opens a Badger data directory read-only, lists the
// tokens held by each record type and checks that every token index entry
// points at a record holding that token.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nurole/shorttoken/internal/di/providers"
	"github.com/nurole/shorttoken/internal/domain"
	"github.com/nurole/shorttoken/internal/record"
	"github.com/nurole/shorttoken/internal/store"
)

func main() {
	dataPath := flag.String("data-path", os.Getenv("DATA_PATH"), "Directory holding the badger database")
	only := flag.String("type", "", "Inspect only this record type (link or invite)")
	list := flag.Bool("list", false, "Print every token")
	flag.Parse()

	if *dataPath == "" {
		*dataPath = os.ExpandEnv("$HOME/.shorttoken/data")
	}

	db, err := store.Open(filepath.Join(*dataPath, "badger"), nil, store.Options{ReadOnly: true})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	var reports []*report
	if *only == "" || *only == "link" {
		r, err := inspect(db, providers.LinkPrefix, domain.LinkToken, domain.LinkID)
		if err != nil {
			log.Fatalf("Inspect links: %v", err)
		}
		reports = append(reports, r)
	}
	if *only == "" || *only == "invite" {
		r, err := inspect(db, providers.InvitePrefix, domain.InviteCode, domain.InviteID)
		if err != nil {
			log.Fatalf("Inspect invites: %v", err)
		}
		reports = append(reports, r)
	}

	healthy := true
	for _, r := range reports {
		r.print(os.Stdout, *list)
		healthy = healthy && r.consistent()
	}
	if !healthy {
		os.Exit(2)
	}
}

// report summarizes the tokens of one record type.
type report struct {
	Prefix  string
	Field   string
	Records int
	// Tokens maps token to record id.
	Tokens   map[string]string
	ByLength map[int]int
	// Unindexed lists records whose token has no index entry pointing back.
	Unindexed []string
	// Orphans lists index entries whose record is gone or holds another token.
	Orphans []string
	// Duplicates lists tokens held by more than one record.
	Duplicates []string
}

func (r *report) consistent() bool {
	return len(r.Unindexed) == 0 && len(r.Orphans) == 0 && len(r.Duplicates) == 0
}

// inspect scans one record type and cross-checks it against its token index.
func inspect[T any](db *store.Store, prefix string, field record.Field[T], id func(*T) string) (*report, error) {
	r := &report{
		Prefix:   prefix,
		Field:    field.Name,
		Tokens:   make(map[string]string),
		ByLength: make(map[int]int),
	}

	idxPrefix := prefix + "idx:"
	fieldPrefix := idxPrefix + field.Name + ":"
	index := make(map[string]string) // token -> id from the index

	err := db.Scan(prefix, func(key string, value []byte) error {
		if strings.HasPrefix(key, idxPrefix) {
			if tok, ok := strings.CutPrefix(key, fieldPrefix); ok {
				index[tok] = string(value)
			}
			return nil
		}

		var rec T
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		r.Records++

		tok := field.Get(&rec)
		if tok == "" {
			return nil
		}
		recID := id(&rec)
		if prev, dup := r.Tokens[tok]; dup {
			r.Duplicates = append(r.Duplicates, fmt.Sprintf("%s (%s, %s)", tok, prev, recID))
			return nil
		}
		r.Tokens[tok] = recID
		r.ByLength[len(tok)]++
		return nil
	})
	if err != nil {
		return nil, err
	}

	for tok, recID := range r.Tokens {
		if index[tok] != recID {
			r.Unindexed = append(r.Unindexed, fmt.Sprintf("%s (%s)", tok, recID))
		}
	}
	for tok, recID := range index {
		if r.Tokens[tok] != recID {
			r.Orphans = append(r.Orphans, fmt.Sprintf("%s -> %s", tok, recID))
		}
	}
	sort.Strings(r.Unindexed)
	sort.Strings(r.Orphans)
	sort.Strings(r.Duplicates)

	return r, nil
}

func (r *report) print(w io.Writer, list bool) {
	fmt.Fprintf(w, "=== %s (%s) ===\n", strings.TrimSuffix(r.Prefix, ":"), r.Field)
	fmt.Fprintf(w, "Records: %d\n", r.Records)
	fmt.Fprintf(w, "Tokens:  %d\n", len(r.Tokens))

	lengths := make([]int, 0, len(r.ByLength))
	for l := range r.ByLength {
		lengths = append(lengths, l)
	}
	sort.Ints(lengths)
	for _, l := range lengths {
		fmt.Fprintf(w, "  length %d: %d\n", l, r.ByLength[l])
	}

	if list {
		tokens := make([]string, 0, len(r.Tokens))
		for tok := range r.Tokens {
			tokens = append(tokens, tok)
		}
		sort.Strings(tokens)
		for _, tok := range tokens {
			fmt.Fprintf(w, "  %s  %s\n", tok, r.Tokens[tok])
		}
	}

	printIssues(w, "Unindexed", r.Unindexed)
	printIssues(w, "Orphaned index entries", r.Orphans)
	printIssues(w, "Duplicate tokens", r.Duplicates)
	if r.consistent() {
		fmt.Fprintln(w, "Index consistent")
	}
	fmt.Fprintln(w)
}

func printIssues(w io.Writer, title string, issues []string) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(w, "%s: %d\n", title, len(issues))
	for _, issue := range issues {
		fmt.Fprintf(w, "  %s\n", issue)
	}
}
