package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/samirrijal/raycross/internal/adapters/feed"
	"github.com/samirrijal/raycross/internal/adapters/overlay"
	"github.com/samirrijal/raycross/internal/core/domain"
	"github.com/samirrijal/raycross/internal/core/rayset"
	"github.com/samirrijal/raycross/internal/pkg/geospatial"
)

func main() {
	cobra.CheckErr(NewCmd().ExecuteContext(context.Background()))
}

func NewCmd() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "raycross [command] [flags] [args]",
		Short:         "raycross triangulates bearing rays offline",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(cmd.UsageString())
		},
	}
	rootCmd.PersistentFlags().String("box-style", "light", "`<Style>` of tables: default, bold, double, light, round")

	projectCmd := &cobra.Command{
		Use:   "project [flags] <lat> <lon> <bearing> <distance>",
		Short: "Project a destination point",
		RunE:  doProject,
	}
	projectCmd.Args = cobra.ExactArgs(4)

	fitCmd := &cobra.Command{
		Use:   "fit [flags] <observations.csv|.xlsx>",
		Short: "Intersect every ray in a file and fit an ellipse",
		RunE:  doFit,
	}
	fitCmd.Args = cobra.ExactArgs(1)
	fitCmd.Flags().StringP("geojson", "g", "", "`<Path>` to write the overlays as GeoJSON")
	fitCmd.Flags().Bool("rays", false, "list every accepted ray")

	rootCmd.AddCommand(
		projectCmd,
		fitCmd,
	)
	return rootCmd
}

func doProject(cmd *cobra.Command, args []string) error {
	in, err := domain.ParseRow(domain.RawRow(args))
	if err != nil {
		return err
	}
	dest := geospatial.Destination(in.Origin, in.Bearing, in.DistanceMeters)

	box := newBox(cmd, "LAT", "LON")
	box.AppendRow(table.Row{"origin", fmtCoord(in.Origin.Lat), fmtCoord(in.Origin.Lon)})
	box.AppendRow(table.Row{"destination", fmtCoord(dest.Lat), fmtCoord(dest.Lon)})
	box.Render()
	return nil
}

func doFit(cmd *cobra.Command, args []string) error {
	path := args[0]
	body, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	format, err := feed.Detect("", filepath.Base(path), body)
	if err != nil {
		return err
	}
	rf, err := feed.FromBytes(format, body)
	if err != nil {
		return err
	}
	rows, err := rf.Rows(cmd.Context())
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	surface := overlay.New()
	rs := rayset.New(surface)
	var skipped int
	for _, row := range rows {
		in, err := domain.ParseRow(row)
		if err == nil {
			_, err = rs.AddRay(in.Origin, in.Bearing, in.DistanceMeters)
		}
		if err != nil {
			skipped++
		}
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d rays loaded, %d rows skipped\n", rs.Len(), skipped)

	if showRays, _ := cmd.Flags().GetBool("rays"); showRays {
		box := newBox(cmd, "ORIGIN", "BEARING", "DISTANCE (m)", "DESTINATION")
		for i, r := range rs.Rays() {
			box.AppendRow(table.Row{i + 1, fmtPoint(r.Origin), r.Bearing, r.DistanceMeters, fmtPoint(r.Destination)})
		}
		box.Render()
	}

	res := rs.ComputeIntersections()
	if res.Status != domain.StatusOK {
		fmt.Fprintln(out, res.Message)
	} else {
		box := newBox(cmd, "LAT", "LON")
		for i, ip := range res.Intersections {
			box.AppendRow(table.Row{i + 1, fmtCoord(ip.Lat), fmtCoord(ip.Lon)})
		}
		box.AppendFooter(table.Row{"", fmt.Sprintf("%d of %d pairs", len(res.Intersections), res.Attempts), ""})
		box.Render()

		e := res.Ellipse
		fmt.Fprintf(out, "ellipse centre %s, semi-axes %.1f m x %.1f m, orientation %.1f deg\n",
			fmtPoint(e.Center), e.SemiMajorAxisMeters, e.SemiMinorAxisMeters, e.OrientationDegrees)
	}

	if geoPath, _ := cmd.Flags().GetString("geojson"); geoPath != "" {
		data, err := surface.FeatureCollection().MarshalJSON()
		if err != nil {
			return err
		}
		if err := os.WriteFile(geoPath, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(out, "overlays written to %s\n", geoPath)
	}
	return nil
}

// newBox returns a numbered table writer rendering to the command's output.
func newBox(cmd *cobra.Command, header ...string) table.Writer {
	w := table.NewWriter()
	w.SetOutputMirror(cmd.OutOrStdout())

	style := table.StyleLight
	name, _ := cmd.Flags().GetString("box-style")
	switch name {
	case "default":
		style = table.StyleDefault
	case "bold":
		style = table.StyleBold
	case "double":
		style = table.StyleDouble
	case "round":
		style = table.StyleRounded
	}
	w.SetStyle(style)

	row := table.Row{"#"}
	for _, h := range header {
		row = append(row, h)
	}
	w.AppendHeader(row)
	return w
}

func fmtCoord(v float64) string { return fmt.Sprintf("%.6f", v) }

func fmtPoint(p domain.GeoPoint) string {
	return fmt.Sprintf("(%s, %s)", fmtCoord(p.Lat), fmtCoord(p.Lon))
}
