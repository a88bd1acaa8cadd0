package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo/core/grade"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db        *sqlx.DB // nil for the memory engine
	publisher *grade.Publisher
	engine    *grade.Engine
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS...] - run a goose command (up, down, status, ...) against the database")
	fmt.Println("  publish -assessment ID -actor ID - publish an assessment and notify guardians")
	fmt.Println("  unpublish -assessment ID -actor ID - revert a published assessment to draft")
	fmt.Println("  sweep -assessment ID -actor ID - publish the late grades of a published assessment")
	fmt.Println("  ranking -class ID -semester ID - print the class ranking (table on a terminal, CSV otherwise)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	transitionCmd := flag.NewFlagSet(args[1], flag.ExitOnError)
	transitionAssessment := transitionCmd.String("assessment", "", "The ID of the assessment.")
	transitionActor := transitionCmd.String("actor", "", "The ID of the user on whose behalf the change is made.")

	rankingCmd := flag.NewFlagSet("ranking", flag.ExitOnError)
	rankingClass := rankingCmd.String("class", "", "The ID of the class.")
	rankingSemester := rankingCmd.String("semester", "", "The ID of the semester.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "publish", "unpublish", "sweep":
		if err := transitionCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *transitionAssessment == "" || *transitionActor == "" {
			transitionCmd.Usage()
			return errHelp
		}
		return cli.transition(args[1], *transitionAssessment, *transitionActor)
	case "ranking":
		if err := rankingCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *rankingClass == "" || *rankingSemester == "" {
			rankingCmd.Usage()
			return errHelp
		}
		return cli.ranking(*rankingClass, *rankingSemester)
	default:
		cli.printUsage()
		return errHelp
	}
}
