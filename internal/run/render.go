package run

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/pixelsense/pixelsense/internal/classify"
	"github.com/pixelsense/pixelsense/internal/organize"
)

// printCategoryTree renders the discovered taxonomy as a tree.
func printCategoryTree(tax classify.Taxonomy) {
	lw := list.NewWriter()
	lw.SetStyle(list.StyleConnectedRounded)
	for _, cat := range tax.Categories {
		lw.AppendItem(cat.Main)
		lw.Indent()
		for _, sub := range cat.Subcategories {
			lw.AppendItem(sub)
		}
		lw.UnIndent()
	}

	fmt.Println("\nDiscovered categories:")
	fmt.Println(lw.Render())
}

func printQuerySummary(stats organize.StatsSnapshot) {
	rows := [][]string{
		{"Total images analyzed", strconv.Itoa(stats.Scanned)},
		{"Images matching query", strconv.Itoa(stats.Matched)},
		{"Images not matching", strconv.Itoa(stats.Unmatched)},
		{"Failed items", strconv.Itoa(stats.Failed)},
		{"Retried calls", strconv.Itoa(stats.Retried)},
	}
	if stats.CopyErrors > 0 {
		rows = append(rows, []string{"Copy errors", strconv.Itoa(stats.CopyErrors)})
	}

	fmt.Println("\nAnalysis summary:")
	fmt.Println(renderTable([]string{"Metric", "Count"}, rows))
}

func printCategorySummary(stats organize.StatsSnapshot) {
	paths := make([]string, 0, len(stats.PerCategory))
	for path := range stats.PerCategory {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	rows := make([][]string, 0, len(paths)+3)
	for _, path := range paths {
		rows = append(rows, []string{path, strconv.Itoa(stats.PerCategory[path])})
	}
	rows = append(rows, []string{"(failed)", strconv.Itoa(stats.Failed)})
	if stats.CopyErrors > 0 {
		rows = append(rows, []string{"(copy errors)", strconv.Itoa(stats.CopyErrors)})
	}

	fmt.Printf("\nCategorized %d of %d images (%d retried calls):\n", stats.Succeeded, stats.Scanned, stats.Retried)
	fmt.Println(renderTable([]string{"Category", "Images"}, rows))
}

func printQueryDetails(outcomes []classify.Outcome[classify.QueryJudgment]) {
	matched := color.New(color.FgGreen)
	unmatched := color.New(color.FgRed)

	fmt.Println("\nDetailed results:")
	for _, out := range outcomes {
		if out.Err != nil {
			unmatched.Printf("%s - error: %s\n", out.Ref.Filename(), out.Err.Message)
			continue
		}
		line := matched
		verdict := "match"
		if !out.Judgment.Matches {
			line = unmatched
			verdict = "no match"
		}
		if out.Judgment.Confidence != nil {
			verdict = fmt.Sprintf("%s (confidence %.2f)", verdict, *out.Judgment.Confidence)
		}
		line.Printf("%s - %s\n", out.Ref.Filename(), verdict)
		if out.Judgment.Reason != "" {
			fmt.Printf("  %s\n", out.Judgment.Reason)
		}
	}
}

func printCategoryDetails(outcomes []classify.Outcome[classify.CategoryJudgment]) {
	categorized := color.New(color.FgGreen)
	failed := color.New(color.FgRed)

	fmt.Println("\nDetailed results:")
	for _, out := range outcomes {
		if out.Err != nil {
			failed.Printf("%s - error: %s\n", out.Ref.Filename(), out.Err.Message)
			continue
		}
		categorized.Printf("%s - %s\n", out.Ref.Filename(), out.Judgment.Path())
		if out.Judgment.Reason != "" {
			fmt.Printf("  %s\n", out.Judgment.Reason)
		}
	}
}

func renderTable(headers []string, rows [][]string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell
		}
		tw.AppendRow(r)
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	return tw.Render()
}
