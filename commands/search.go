package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"tekst-client/model"
	"tekst-client/search"
)

// searchFlags are shared by the commands that build a search request.
func searchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "page", Usage: "result page", Value: search.DefaultPage},
		&cli.IntFlag{Name: "page-size", Usage: "hits per page", Value: search.DefaultPageSize},
		&cli.StringFlag{Name: "sort", Usage: "relevance, text_level_position or text_level_relevance", Value: string(model.SortRelevance)},
		&cli.BoolFlag{Name: "strict", Usage: "only match whole words"},
	}
}

func quickFlags() []cli.Flag {
	return append(searchFlags(),
		&cli.StringFlag{Name: "q", Usage: "query string"},
		&cli.StringFlag{Name: "op", Usage: "default operator, AND or OR", Value: "OR"},
		&cli.BoolFlag{Name: "regex", Usage: "treat the query as a regular expression"},
		&cli.StringSliceFlag{Name: "text", Usage: "restrict to these text ids"},
	)
}

func generalFromFlags(cmd *cli.Command) model.GeneralSearchSettings {
	gen := search.DefaultGeneralSettings()
	gen.Pagination = model.Pagination{Page: max(1, cmd.Int("page")), PageSize: max(1, cmd.Int("page-size"))}
	if s := cmd.String("sort"); s != "" {
		preset := model.SortingPreset(s)
		gen.Sort = &preset
	}
	gen.Strict = cmd.Bool("strict")
	return gen
}

func quickFromFlags(cmd *cli.Command) model.QuickSearchSettings {
	return model.QuickSearchSettings{
		Op:    strings.ToUpper(cmd.String("op")),
		Regex: cmd.Bool("regex"),
		Texts: cmd.StringSlice("text"),
	}
}

func quickRequestFromFlags(cmd *cli.Command) *model.QuickSearchRequest {
	q := cmd.String("q")
	if q == "" {
		q = cmd.Args().First()
	}
	return &model.QuickSearchRequest{
		Query:    q,
		Settings: generalFromFlags(cmd),
		Quick:    quickFromFlags(cmd),
	}
}

func (ac *AppContext) newSearchSession(cmd *cli.Command) *search.Session {
	s := search.NewSession(ac.Client,
		search.WithCodec(ac.Codec()),
		search.WithResultsURL(ac.ResultsURL()),
	)
	*s.General() = generalFromFlags(cmd)
	return s
}

// SearchQuickAction runs a quick search and prints the hits and a link to
// the results page.
func SearchQuickAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	s := app.newSearchSession(cmd)
	*s.Quick() = quickFromFlags(cmd)
	if err := s.SearchQuick(ctx, quickRequestFromFlags(cmd).Query); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	renderResults(app, s)
	return nil
}

// SearchAdvancedAction runs an advanced search whose resource queries are
// read from a JSON file.
func SearchAdvancedAction(ctx context.Context, cmd *cli.Command) error {
	data, err := os.ReadFile(cmd.String("query-file"))
	if err != nil {
		return fmt.Errorf("read query file: %w", err)
	}
	var queries []model.ResourceSearchQuery
	if err := json.Unmarshal(data, &queries); err != nil {
		return fmt.Errorf("parse query file: %w", err)
	}
	if len(queries) == 0 {
		return errors.New("query file holds no queries")
	}

	app, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	s := app.newSearchSession(cmd)
	if err := s.SearchAdvanced(ctx, queries); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	renderResults(app, s)
	return nil
}

// SearchLinkAction prints the results page link for a quick search without
// running it.
func SearchLinkAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Fprintln(app.Out, app.Codec().URLFor(app.ResultsURL(), quickRequestFromFlags(cmd)).String())
	return nil
}

// SearchDecodeAction prints the request carried by a results link. Unlike
// opening the link in a browser it reports undecodable links as errors.
func SearchDecodeAction(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.String("link")
	if raw == "" {
		raw = cmd.Args().First()
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse link: %w", err)
	}
	encoded := u.Query().Get(search.QueryParam)
	if encoded == "" && !strings.Contains(raw, "?") {
		encoded = raw
	}
	req, err := search.Decode(encoded)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, string(out))
	return nil
}

func renderResults(app *AppContext, s *search.Session) {
	res := s.Results()
	relation := ""
	if res.TotalHitsRelation == "gte" {
		relation = "≥ "
	}
	pgn := s.General().Pagination
	fmt.Fprintf(app.Out, "%s%d hits (%d ms), page %d\n", relation, res.TotalHits, res.Took, pgn.Page)

	if len(res.Hits) > 0 {
		table := tablewriter.NewWriter(app.Out)
		table.Header("#", "Label", "Text", "Level", "Position", "Score")
		for i, hit := range res.Hits {
			score := ""
			if hit.Score != nil {
				score = fmt.Sprintf("%.2f", *hit.Score)
			}
			label := hit.FullLabel
			if label == "" {
				label = hit.Label
			}
			table.Append(
				fmt.Sprintf("%d", (pgn.Page-1)*pgn.PageSize+i+1),
				label,
				hit.TextID,
				fmt.Sprintf("%d", hit.Level),
				fmt.Sprintf("%d", hit.Position),
				score,
			)
		}
		table.Render()
	}

	if link := s.ResultsURL(); link != "" {
		fmt.Fprintf(app.Out, "link: %s\n", link)
	}
}
