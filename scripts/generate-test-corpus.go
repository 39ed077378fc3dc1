//go:build ignore

// Package main generates a synthetic desktop-file corpus for indexing
// benchmarks: notes, reports, legal/financial documents, spreadsheets
// (as CSV), and presentation outlines, spread across the extensions
// internal/search's structured-query doc-type intents recognize.
// Usage: go run scripts/generate-test-corpus.go -files 1000 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numFiles  = flag.Int("files", 1000, "Number of files to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var notesTemplate = `%s

%s catch-up notes, %s.

- follow up with %s on the %s timeline
- review the %s draft before the next sync
- open questions: %s
`

var reportTemplate = `# %s Report

## Summary

This report covers %s activity for the period ending %s. Overall
status is %s, with %d items tracked across the %s workstream.

## Details

%s continues to track against plan. Key risks: %s.

## Next steps

- %s
- %s
`

var legalTemplate = `AGREEMENT

This %s Agreement ("Agreement") is entered into between %s and %s,
effective as of %s.

1. Scope. The parties agree to the terms described in Exhibit A
   regarding %s.
2. Term. This Agreement remains in effect until terminated by either
   party with %d days' written notice.
3. Confidentiality. Each party shall treat the other's %s information
   as confidential.

Signed,
%s
`

var financialTemplate = `invoice_number,date,vendor,category,amount
%s,%s,%s,%s,%.2f
`

var presentationOutlineTemplate = `%s

Slide 1: Title — %s
Slide 2: Background — %s
Slide 3: Approach — %s
Slide 4: Results — %s
Slide 5: Next steps — %s
`

var (
	people = []string{
		"Avery", "Priya", "Jordan", "Wei", "Sofia", "Malik", "Grace", "Dmitri",
		"Noor", "Keane", "Imani", "Lucas",
	}
	topics = []string{
		"budget", "renewal", "onboarding", "migration", "roadmap", "vendor review",
		"compliance audit", "hiring plan", "launch", "retrospective", "security review",
		"offsite planning",
	}
	workstreams = []string{
		"platform", "growth", "infra", "data", "design", "support", "legal", "finance",
	}
	statuses = []string{"on track", "at risk", "blocked", "ahead of schedule"}
	vendors  = []string{"Acme Supply", "Northwind Traders", "Globex", "Initech", "Umbrella Corp"}
	categories = []string{
		"software", "travel", "office supplies", "consulting", "hardware", "training",
	}
)

func main() {
	flag.Parse()
	rand.Seed(*seed)

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	subdirs := []string{"notes", "reports", "legal", "financial", "presentations"}
	for _, subdir := range subdirs {
		if err := os.MkdirAll(filepath.Join(*outputDir, subdir), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating subdirectory %s: %v\n", subdir, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generating %d files in %s...\n", *numFiles, *outputDir)

	notesFiles := *numFiles * 30 / 100
	reportFiles := *numFiles * 25 / 100
	legalFiles := *numFiles * 15 / 100
	financialFiles := *numFiles * 15 / 100
	presoFiles := *numFiles - notesFiles - reportFiles - legalFiles - financialFiles

	generated := 0

	for i := 0; i < notesFiles; i++ {
		if err := generateNotesFile(i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating notes file %d: %v\n", i, err)
		}
		generated++
	}

	for i := 0; i < reportFiles; i++ {
		if err := generateReportFile(i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating report file %d: %v\n", i, err)
		}
		generated++
	}

	for i := 0; i < legalFiles; i++ {
		if err := generateLegalFile(i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating legal file %d: %v\n", i, err)
		}
		generated++
	}

	for i := 0; i < financialFiles; i++ {
		if err := generateFinancialFile(i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating financial file %d: %v\n", i, err)
		}
		generated++
	}

	for i := 0; i < presoFiles; i++ {
		if err := generatePresentationFile(i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating presentation file %d: %v\n", i, err)
		}
		generated++
	}

	fmt.Printf("Generated %d files successfully.\n", generated)
}

func randomWord(pool []string) string {
	return pool[rand.Intn(len(pool))]
}

func generateNotesFile(index int) error {
	topic := randomWord(topics)
	person := randomWord(people)
	team := randomWord(workstreams)

	content := fmt.Sprintf(notesTemplate,
		topic, team, fmt.Sprintf("week %d", index%52),
		person, topic, topic, topic,
	)

	filename := filepath.Join(*outputDir, "notes", fmt.Sprintf("%s_notes_%d.md", team, index))
	return os.WriteFile(filename, []byte(content), 0644)
}

func generateReportFile(index int) error {
	team := randomWord(workstreams)
	status := randomWord(statuses)
	topic := randomWord(topics)

	content := fmt.Sprintf(reportTemplate,
		team, team, fmt.Sprintf("2026-%02d-01", index%12+1),
		status, index%200, team,
		team, topic,
		"confirm ownership for "+topic,
		"schedule a follow-up review",
	)

	filename := filepath.Join(*outputDir, "reports", fmt.Sprintf("%s_report_%d.txt", team, index))
	return os.WriteFile(filename, []byte(content), 0644)
}

func generateLegalFile(index int) error {
	partyA := randomWord(people)
	partyB := randomWord(vendors)
	topic := randomWord(topics)

	content := fmt.Sprintf(legalTemplate,
		"Services", partyA, partyB, fmt.Sprintf("2026-%02d-15", index%12+1),
		topic, 30+index%60, topic, partyA,
	)

	filename := filepath.Join(*outputDir, "legal", fmt.Sprintf("agreement_%d.txt", index))
	return os.WriteFile(filename, []byte(content), 0644)
}

func generateFinancialFile(index int) error {
	vendor := randomWord(vendors)
	category := randomWord(categories)

	content := fmt.Sprintf(financialTemplate,
		fmt.Sprintf("INV-%05d", index), fmt.Sprintf("2026-%02d-10", index%12+1),
		vendor, category, 50+rand.Float64()*4950,
	)

	filename := filepath.Join(*outputDir, "financial", fmt.Sprintf("invoice_%d.csv", index))
	return os.WriteFile(filename, []byte(content), 0644)
}

func generatePresentationFile(index int) error {
	topic := randomWord(topics)
	team := randomWord(workstreams)

	content := fmt.Sprintf(presentationOutlineTemplate,
		fmt.Sprintf("%s %s deck", team, topic),
		topic, topic, topic, topic, topic,
	)

	filename := filepath.Join(*outputDir, "presentations", fmt.Sprintf("%s_outline_%d.txt", team, index))
	return os.WriteFile(filename, []byte(content), 0644)
}
