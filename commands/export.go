package commands

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/urfave/cli/v3"

	"tekst-client/model"
)

// ExportResourceAction starts a resource export and, unless --no-wait is
// given, tracks it until the file is downloaded.
func ExportResourceAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	task, err := app.Client.ExportResource(ctx, cmd.String("id"), cmd.String("format"))
	if err != nil {
		return fmt.Errorf("start resource export: %w", err)
	}
	return track(ctx, app, task, cmd.Bool("no-wait"))
}

// ExportSearchAction exports all results of a search given as a results
// link or as a quick search query.
func ExportSearchAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	var req model.SearchRequest
	switch {
	case cmd.String("link") != "":
		u, err := url.Parse(cmd.String("link"))
		if err != nil {
			return fmt.Errorf("parse link: %w", err)
		}
		req = app.Codec().FromURL(u)
	case cmd.IsSet("q"):
		req = quickRequestFromFlags(cmd)
	default:
		return errors.New("either --link or --q is required")
	}

	task, err := app.Client.ExportSearch(ctx, req)
	if err != nil {
		return fmt.Errorf("start search export: %w", err)
	}
	return track(ctx, app, task, cmd.Bool("no-wait"))
}

// IndexCreateAction triggers a rebuild of the search index (superusers only).
func IndexCreateAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	task, err := app.Client.CreateSearchIndex(ctx)
	if err != nil {
		return fmt.Errorf("start index update: %w", err)
	}
	return track(ctx, app, task, cmd.Bool("no-wait"))
}
