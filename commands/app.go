package commands

import (
	"github.com/urfave/cli/v3"
)

func noWaitFlag() cli.Flag {
	return &cli.BoolFlag{Name: "no-wait", Usage: "start the task and return; follow it later with tasks watch"}
}

// NewApp builds the command tree.
func NewApp() *cli.Command {
	return &cli.Command{
		Name:  "tekst",
		Usage: "command line client for the Tekst platform",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "path to an env file",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "tasks",
				Usage: "follow and manage background tasks",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "show tracked tasks",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "all", Usage: "show every task on the platform (superusers only)"},
						},
						Action: TasksListAction,
					},
					{
						Name:   "watch",
						Usage:  "poll tracked tasks until all of them are finished",
						Action: TasksWatchAction,
					},
					{
						Name:  "clear",
						Usage: "forget a tracked task, or all finished ones",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "id", Usage: "task id"},
						},
						Action: TasksClearAction,
					},
					{
						Name:  "delete",
						Usage: "delete tasks on the platform (superusers only)",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "id", Usage: "task id"},
							&cli.BoolFlag{Name: "all", Usage: "delete all tasks"},
						},
						Action: TasksDeleteAction,
					},
				},
			},
			{
				Name:  "export",
				Usage: "export resources or search results",
				Commands: []*cli.Command{
					{
						Name:  "resource",
						Usage: "export the contents of a resource",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "id", Usage: "resource id", Required: true},
							&cli.StringFlag{Name: "format", Usage: "json, tekst-json or csv", Value: "json"},
							noWaitFlag(),
						},
						Action: ExportResourceAction,
					},
					{
						Name:  "search",
						Usage: "export all results of a search",
						Flags: append(quickFlags(),
							&cli.StringFlag{Name: "link", Usage: "search results link"},
							noWaitFlag(),
						),
						Action: ExportSearchAction,
					},
				},
			},
			{
				Name:  "index",
				Usage: "search index maintenance",
				Commands: []*cli.Command{
					{
						Name:   "create",
						Usage:  "create or update the search index (superusers only)",
						Flags:  []cli.Flag{noWaitFlag()},
						Action: IndexCreateAction,
					},
				},
			},
			{
				Name:  "search",
				Usage: "search texts",
				Commands: []*cli.Command{
					{
						Name:      "quick",
						Usage:     "run a quick search",
						ArgsUsage: "[query]",
						Flags:     quickFlags(),
						Action:    SearchQuickAction,
					},
					{
						Name:  "advanced",
						Usage: "run an advanced search",
						Flags: append(searchFlags(),
							&cli.StringFlag{Name: "query-file", Usage: "JSON file with the resource queries", Required: true},
						),
						Action: SearchAdvancedAction,
					},
					{
						Name:      "link",
						Usage:     "print the results link of a quick search",
						ArgsUsage: "[query]",
						Flags:     quickFlags(),
						Action:    SearchLinkAction,
					},
					{
						Name:      "decode",
						Usage:     "print the search request carried by a results link",
						ArgsUsage: "[link]",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "link", Usage: "search results link or encoded request"},
						},
						Action: SearchDecodeAction,
					},
				},
			},
			{
				Name:  "login",
				Usage: "sign in to the platform",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true, Sources: cli.EnvVars("TEKST_USERNAME")},
					&cli.StringFlag{Name: "password", Required: true, Sources: cli.EnvVars("TEKST_PASSWORD")},
				},
				Action: LoginAction,
			},
			{
				Name:   "logout",
				Usage:  "end the session",
				Action: LogoutAction,
			},
		},
	}
}
