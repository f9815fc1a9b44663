package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/json"
)

type catalogOptions struct {
	geometry  string
	timeMode  string
	dim       int
	multizone bool
	namespace string
	format    string
}

func newCatalogCmd() *cobra.Command {
	opts := &catalogOptions{}
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the fields registered for an analysis",
		Long: `Print the history or volume catalog an analysis produces, in column order.

Example:
  feaout catalog --geometry LARGE_DEFORMATIONS --time DYNAMIC --dim 3 --namespace volume`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(opts)
		},
	}
	cmd.Flags().StringVar(&opts.geometry, "geometry", string(config.SmallDeformations), "Geometry mode (SMALL_DEFORMATIONS, LARGE_DEFORMATIONS)")
	cmd.Flags().StringVar(&opts.timeMode, "time", string(config.Static), "Time mode (STATIC, DYNAMIC)")
	cmd.Flags().IntVar(&opts.dim, "dim", 2, "Spatial dimension (2 or 3)")
	cmd.Flags().BoolVar(&opts.multizone, "multizone", false, "Multizone run")
	cmd.Flags().StringVar(&opts.namespace, "namespace", string(field.History), "Catalog to print (history, volume)")
	cmd.Flags().StringVarP(&opts.format, "output", "o", "table", "Output format (table, json, yaml)")
	return cmd
}

func runCatalog(opts *catalogOptions) error {
	analysis := config.AnalysisConfig{
		GeometryMode: config.GeometryMode(opts.geometry),
		TimeMode:     config.TimeMode(opts.timeMode),
		SpatialDim:   opts.dim,
		Multizone:    opts.multizone,
	}

	var cat *field.Catalog
	var err error
	switch field.Namespace(opts.namespace) {
	case field.History:
		cat, err = field.BuildHistoryCatalog(analysis)
	case field.Volume:
		cat, err = field.BuildVolumeCatalog(analysis)
	default:
		return fmt.Errorf("unknown namespace %q", opts.namespace)
	}
	if err != nil {
		return err
	}

	switch opts.format {
	case "json":
		data, err := json.MarshalIndent(cat.Fields(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(cat.Fields())
		if err != nil {
			return err
		}
		fmt.Print(string(data))
	case "table":
		fmt.Println(catalogTable(cat))
	default:
		return fmt.Errorf("unknown output format %q", opts.format)
	}
	return nil
}

func catalogTable(cat *field.Catalog) string {
	r := lipgloss.NewRenderer(os.Stdout)
	header := r.NewStyle().Bold(true).Padding(0, 1)
	cell := r.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "ID", "LABEL", "GROUP", "FORMAT", "KIND").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	for i, d := range cat.Fields() {
		t.Row(fmt.Sprint(i), string(d.ID), d.Label, d.Group, d.Format.String(), d.Kind.String())
	}
	return t.String()
}
