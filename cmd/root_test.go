package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/testimony-tracker/internal/config"
	"github.com/JakeFAU/testimony-tracker/internal/testimony"
)

func TestCountPrintsTable(t *testing.T) {
	app := &fakeApp{tasks: &fakeTasks{snap: &testimony.Snapshot{
		Results: testimony.Results{Total: 9, Support: 5, Oppose: 3, Unknown: 1},
	}}}

	out, err := execute(t, app, "count")
	require.NoError(t, err)

	assert.Regexp(t, `(?i)sb 422 testimony`, out)
	assert.Contains(t, out, "STANCE")
	assert.Regexp(t, `Total\s+│\s+9`, out)
	assert.Regexp(t, `Oppose\s+│\s+3`, out)
	assert.Equal(t, 1, app.tasks.updates)
	assert.Equal(t, 1, app.closed)
}

func TestCountPropagatesUpdateError(t *testing.T) {
	app := &fakeApp{tasks: &fakeTasks{updateErr: errors.New("olis down")}}

	_, err := execute(t, app, "count")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "olis down")
}

func TestRefreshRunsEveryTask(t *testing.T) {
	app := &fakeApp{tasks: &fakeTasks{snap: &testimony.Snapshot{
		Results:        testimony.Results{Total: 2, Support: 2},
		MissingEnabled: true,
		MissingCount:   4,
	}}}

	out, err := execute(t, app, "refresh")
	require.NoError(t, err)

	assert.Equal(t, 1, app.tasks.updates)
	assert.Equal(t, 1, app.tasks.prunes)
	assert.Equal(t, 1, app.tasks.regenerates)
	assert.Regexp(t, `MISSING\s+│\s+4`, out)
}

func TestRefreshReportsRegenerateFailure(t *testing.T) {
	app := &fakeApp{tasks: &fakeTasks{regenErr: errors.New("pdfunite exploded")}}

	out, err := execute(t, app, "refresh")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "regenerate: pdfunite exploded")
	assert.Contains(t, out, "Total")
}

func TestMissingPrintsNames(t *testing.T) {
	app := &fakeApp{tasks: &fakeTasks{}}
	app.prepare = func(cfg *config.Config) {
		cfg.Storage.OutputDir = t.TempDir()
		require.NoError(t, os.WriteFile(
			filepath.Join(cfg.Storage.OutputDir, cfg.Storage.MissingNames),
			[]byte("Charles Babbage\nGrace Hopper"),
			0o600,
		))
	}

	out, err := execute(t, app, "missing")
	require.NoError(t, err)
	assert.Equal(t, "Charles Babbage\nGrace Hopper\n", out)
}

func TestMissingRequiresComparisonBill(t *testing.T) {
	app := &fakeApp{tasks: &fakeTasks{}}
	app.prepare = func(cfg *config.Config) {
		cfg.Source.CompareBill = ""
		cfg.Source.CompareSession = ""
	}

	_, err := execute(t, app, "missing")
	require.Error(t, err)
	assert.Equal(t, 0, app.tasks.updates)
}

func TestServeRunsApp(t *testing.T) {
	app := &fakeApp{tasks: &fakeTasks{}}

	_, err := execute(t, app, "serve")
	require.NoError(t, err)
	assert.Equal(t, 1, app.runs)
}

func TestServeIgnoresCancellation(t *testing.T) {
	app := &fakeApp{tasks: &fakeTasks{}, runErr: context.Canceled}

	_, err := execute(t, app, "serve")
	require.NoError(t, err)
}

func TestFactoryErrorStopsCommand(t *testing.T) {
	root := newRootCmd(func(context.Context, *config.Config) (App, error) {
		return nil, errors.New("no disk")
	})
	root.SetArgs([]string{"count"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize application services")
}

func execute(t *testing.T, app *fakeApp, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(func(_ context.Context, cfg *config.Config) (App, error) {
		if app.prepare != nil {
			app.prepare(cfg)
		}
		app.cfg = cfg
		return app, nil
	})
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

type fakeApp struct {
	cfg     *config.Config
	prepare func(*config.Config)
	tasks   *fakeTasks
	runErr  error
	runs    int
	closed  int
}

func (a *fakeApp) Run(context.Context) error {
	a.runs++
	return a.runErr
}

func (a *fakeApp) Close(context.Context) error {
	a.closed++
	return nil
}

func (a *fakeApp) Logger() *zap.Logger { return zap.NewNop() }

func (a *fakeApp) Config() *config.Config { return a.cfg }

func (a *fakeApp) Tasks() Refresher { return a.tasks }

type fakeTasks struct {
	snap        *testimony.Snapshot
	updateErr   error
	regenErr    error
	updates     int
	prunes      int
	regenerates int
}

func (f *fakeTasks) Update(context.Context) error {
	f.updates++
	return f.updateErr
}

func (f *fakeTasks) Prune(context.Context) error {
	f.prunes++
	return nil
}

func (f *fakeTasks) Regenerate(context.Context) error {
	f.regenerates++
	return f.regenErr
}

func (f *fakeTasks) Snapshot() *testimony.Snapshot { return f.snap }
