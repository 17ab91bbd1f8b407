package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"tekst-client/model"
	"tekst-client/tracker"
)

// TasksListAction prints the tasks tracked locally, or with --all every task
// on the platform (superusers only).
func TasksListAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	var tasks []model.Task
	if cmd.Bool("all") {
		tasks, err = app.Client.AllTasks(ctx)
		if err != nil {
			return fmt.Errorf("list platform tasks: %w", err)
		}
	} else {
		tr := app.OfflineTracker()
		if err := tr.Restore(ctx); err != nil {
			return err
		}
		tasks = tr.Tasks()
	}

	if len(tasks) == 0 {
		fmt.Fprintln(app.Out, "no tasks")
		return nil
	}
	renderTasks(app.Out, app, tasks)
	return nil
}

// TasksWatchAction polls the tracked tasks until none is active or the
// process is interrupted.
func TasksWatchAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Config.MetricsAddr != "" {
		go serveMetrics(ctx, app)
	}

	tr, poller := app.NewTracker(ctx)
	if err := tr.Restore(ctx); err != nil {
		return err
	}
	if !tr.Polling() {
		fmt.Fprintln(app.Out, "nothing to watch")
		return nil
	}
	return waitForTasks(ctx, app, tr, poller.Wait)
}

// TasksClearAction forgets a tracked task, or every finished one without --id.
func TasksClearAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	tr := app.OfflineTracker()
	if err := tr.Restore(ctx); err != nil {
		return err
	}
	before := len(tr.Tasks())
	tr.RemoveTask(cmd.String("id"))
	fmt.Fprintf(app.Out, "removed %d task(s)\n", before-len(tr.Tasks()))
	return nil
}

// TasksDeleteAction deletes tasks on the platform (superusers only).
func TasksDeleteAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	id := cmd.String("id")
	switch {
	case cmd.Bool("all"):
		err = app.Client.DeleteAllTasks(ctx)
	case id != "":
		err = app.Client.DeleteTask(ctx, id)
	default:
		return errors.New("either --id or --all is required")
	}
	if err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	fmt.Fprintln(app.Out, "deleted")
	return nil
}

// track hands a freshly started task to the tracker and, unless noWait is
// set, waits until nothing tracked is active any more.
func track(ctx context.Context, app *AppContext, task *model.Task, noWait bool) error {
	name := app.Catalog.T("tasks.types."+string(task.Type), nil)
	if noWait {
		tr := app.OfflineTracker()
		if err := tr.Restore(ctx); err != nil {
			return err
		}
		if err := tr.AddTask(*task); err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "started %s (id %s), follow it with: tasks watch\n", name, task.ID)
		return nil
	}

	tr, poller := app.NewTracker(ctx)
	if err := tr.Restore(ctx); err != nil {
		return err
	}
	if err := tr.AddTask(*task); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "started %s (id %s)\n", name, task.ID)
	return waitForTasks(ctx, app, tr, poller.Wait)
}

func waitForTasks(ctx context.Context, app *AppContext, tr *tracker.Tracker, join func()) error {
	select {
	case <-tr.Done():
	case <-ctx.Done():
		tr.StopPolling()
	}
	join()
	renderTasks(app.Out, app, tr.Tasks())
	return nil
}

func renderTasks(w io.Writer, app *AppContext, tasks []model.Task) {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Type", "Status", "Started", "Duration", "Error")
	for _, t := range tasks {
		started := ""
		if !t.Started().IsZero() {
			started = t.Started().Local().Format(time.DateTime)
		}
		duration := ""
		if t.DurationSeconds != nil {
			duration = (time.Duration(*t.DurationSeconds * float64(time.Second))).Round(time.Millisecond).String()
		}
		errText := ""
		if t.Error != nil {
			errText = *t.Error
			if key := "errors." + *t.Error; app.Catalog.Has(key) {
				errText = app.Catalog.T(key, nil)
			}
		}
		table.Append(t.ID, app.Catalog.T("tasks.types."+string(t.Type), nil), string(t.Status), started, duration, errText)
	}
	table.Render()
}

func serveMetrics(ctx context.Context, app *AppContext) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: app.Config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.Logger.Info("serving metrics", "addr", app.Config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.Logger.Error("metrics server failed", "error", err)
	}
}
