package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core/grade"
)

// transition runs publish, unpublish or sweep and prints what it did.
func (cli *commandLine) transition(action, assessmentID, actorID string) error {
	var fn func(context.Context, string, string) (grade.PublishResult, error)
	switch action {
	case "publish":
		fn = cli.publisher.Publish
	case "unpublish":
		fn = cli.publisher.Unpublish
	case "sweep":
		fn = cli.publisher.Sweep
	default:
		return errors.Errorf("unknown transition %q", action)
	}

	res, err := fn(context.Background(), assessmentID, actorID)
	if err != nil {
		return errors.Wrapf(err, "%s %s", action, assessmentID)
	}

	switch {
	case res.AlreadyPublished:
		_, err = fmt.Fprintf(cli.out, "%s: already published\n", assessmentID)
	case res.AlreadyDraft:
		_, err = fmt.Fprintf(cli.out, "%s: draft, nothing to do\n", assessmentID)
	default:
		_, err = fmt.Fprintf(cli.out, "%s: %s %d grade(s); %d notified, %d notification(s) failed\n",
			assessmentID, res.Action, res.GradesAffected, res.Notified, res.NotificationsFailed)
	}
	if err == nil && res.AuditFailed {
		_, err = fmt.Fprintf(cli.out, "%s: WARNING audit entry could not be recorded\n", assessmentID)
	}
	return err
}
