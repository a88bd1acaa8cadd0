package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/masomo/core/grade"
)

var isTerminalFunc = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) } // mockable

// ranking prints the class ranking: an aligned table on a terminal, CSV otherwise.
func (cli *commandLine) ranking(classID, semesterID string) error {
	rows, err := cli.engine.ClassRanking(classID, semesterID).All(context.Background())
	if err != nil {
		return errors.Wrap(err, "ranking class")
	}
	if isTerminalFunc() {
		return cli.printRankingTable(rows)
	}
	return cli.printRankingCSV(rows)
}

func rankLabel(r grade.ClassRankRow) string {
	if r.Rank == 0 {
		return "-"
	}
	return strconv.Itoa(r.Rank)
}

func (cli *commandLine) printRankingTable(rows []grade.ClassRankRow) error {
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSTUDENT\tSUBJECTS\tTOTAL\tAVERAGE")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.1f\t%.1f\n", rankLabel(r), r.StudentName, r.SubjectsWithData, r.Total, r.Average)
	}
	return w.Flush()
}

func (cli *commandLine) printRankingCSV(rows []grade.ClassRankRow) error {
	w := csv.NewWriter(cli.out)
	_ = w.Write([]string{"rank", "student_id", "student_name", "subjects_with_data", "total", "average"})
	for _, r := range rows {
		_ = w.Write([]string{
			strconv.Itoa(r.Rank),
			r.StudentID,
			r.StudentName,
			strconv.Itoa(r.SubjectsWithData),
			strconv.FormatFloat(r.Total, 'f', 1, 64),
			strconv.FormatFloat(r.Average, 'f', 1, 64),
		})
	}
	w.Flush()
	return w.Error()
}
