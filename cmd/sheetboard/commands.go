package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-sheetboard/components/dashboard"
)

type listCmd struct{}

func (cmd *listCmd) Run(a *app) error {
	s, err := openSession(a, "", false)
	if err != nil {
		return err
	}
	defer s.close(a.ctx, false)
	items, err := s.svc.ListDashboards(a.ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tWIDGETS\tWORKBOOK\tUPDATED")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", item.ID, item.Title, len(item.Components), item.WorkbookID, item.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

type exportCmd struct {
	Dashboard string `required:"" help:"Dashboard id."`
	Out       string `type:"path" help:"Output file (defaults to a name derived from the title)."`
}

func (cmd *exportCmd) Run(a *app) error {
	s, err := openSession(a, cmd.Dashboard, false)
	if err != nil {
		return err
	}
	defer s.close(a.ctx, false)
	out := cmd.Out
	if out == "" {
		out = s.svc.ExportFileName()
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := s.svc.ExportWidgets(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.logger.Info("dashboard exported", zap.String("dashboard_id", cmd.Dashboard), zap.String("file", out))
	return nil
}

type importCmd struct {
	Dashboard string `required:"" help:"Dashboard id."`
	File      string `arg:"" type:"existingfile" help:"JSON export to import."`
}

func (cmd *importCmd) Run(a *app) error {
	s, err := openSession(a, cmd.Dashboard, false)
	if err != nil {
		return err
	}
	f, err := os.Open(cmd.File)
	if err != nil {
		_ = s.close(a.ctx, false)
		return err
	}
	defer f.Close()
	if err := s.svc.ImportWidgets(a.ctx, f); err != nil {
		_ = s.close(a.ctx, false)
		return err
	}
	return s.close(a.ctx, false)
}

type refreshCmd struct {
	Dashboard string `required:"" help:"Dashboard id."`
	Gantt     bool   `help:"Also rebuild gantt widgets from the Gantt sheet."`
}

func (cmd *refreshCmd) Run(a *app) error {
	s, err := openSession(a, cmd.Dashboard, true)
	if err != nil {
		return err
	}
	err = s.svc.RefreshAllCharts(a.ctx)
	if err == nil && cmd.Gantt {
		err = s.svc.RefreshGantt(a.ctx)
	}
	return errors.Join(err, s.close(a.ctx, false))
}

type migrateCmd struct {
	Dashboard string `required:"" help:"Dashboard id."`
}

func (cmd *migrateCmd) Run(a *app) error {
	s, err := openSession(a, cmd.Dashboard, true)
	if err != nil {
		return err
	}
	if dashboard.NeedsMigration(s.svc.State().Widgets) {
		a.logger.Warn("legacy charts remain after load", zap.String("dashboard_id", cmd.Dashboard))
	} else {
		a.logger.Info("no legacy charts", zap.String("dashboard_id", cmd.Dashboard))
	}
	return s.close(a.ctx, false)
}

type versionCmd struct {
	Save    versionSaveCmd    `cmd:"" help:"Snapshot the dashboard."`
	List    versionListCmd    `cmd:"" help:"List saved versions, newest first."`
	Restore versionRestoreCmd `cmd:"" help:"Restore a saved version."`
}

type versionSaveCmd struct {
	Dashboard string `required:"" help:"Dashboard id."`
}

func (cmd *versionSaveCmd) Run(a *app) error {
	s, err := openSession(a, cmd.Dashboard, false)
	if err != nil {
		return err
	}
	v, err := s.svc.SaveDashboardVersion(a.ctx)
	if err == nil {
		fmt.Println(v.ID)
	}
	return errors.Join(err, s.close(a.ctx, false))
}

type versionListCmd struct {
	Dashboard string `required:"" help:"Dashboard id."`
}

func (cmd *versionListCmd) Run(a *app) error {
	s, err := openSession(a, cmd.Dashboard, false)
	if err != nil {
		return err
	}
	defer s.close(a.ctx, false)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSAVED\tTITLE\tWIDGETS")
	for _, v := range s.svc.Versions() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", v.ID, v.Timestamp.Format(time.RFC3339), v.Title, len(v.Components))
	}
	return tw.Flush()
}

type versionRestoreCmd struct {
	Dashboard string `required:"" help:"Dashboard id."`
	ID        string `arg:"" help:"Version id."`
}

func (cmd *versionRestoreCmd) Run(a *app) error {
	s, err := openSession(a, cmd.Dashboard, false)
	if err != nil {
		return err
	}
	err = s.svc.RestoreDashboardVersion(a.ctx, cmd.ID)
	return errors.Join(err, s.close(a.ctx, false))
}

type writeMetricCmd struct {
	Dashboard string  `required:"" help:"Dashboard id."`
	Widget    string  `required:"" help:"Metric widget id."`
	Value     float64 `arg:"" help:"Value to write."`
}

func (cmd *writeMetricCmd) Run(a *app) error {
	s, err := openSession(a, cmd.Dashboard, true)
	if err != nil {
		return err
	}
	if err := s.svc.WriteMetricValue(a.ctx, cmd.Widget, cmd.Value); err != nil {
		_ = s.close(a.ctx, false)
		return err
	}
	return s.close(a.ctx, true)
}

type seedCmd struct {
	Dir string `arg:"" type:"existingdir" help:"Directory of .yaml/.yml/.json template files."`
}

func (cmd *seedCmd) Run(a *app) error {
	s, err := openSession(a, "", false)
	if err != nil {
		return err
	}
	defer s.close(a.ctx, false)
	seeded, err := dashboard.SeedTemplates(a.ctx, s.svc, cmd.Dir)
	if err != nil {
		return err
	}
	for _, tpl := range seeded {
		fmt.Printf("%s\t%s\n", tpl.ID, tpl.Name)
	}
	return nil
}
